// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogOrderSubmission logs a broker order submission.
func (al *AuditLogger) LogOrderSubmission(orderID, clientOrderID, symbol, side, qty, status string, timestamp time.Time, paperTrading bool) {
	al.WithFields(logrus.Fields{
		"order_id":        orderID,
		"client_order_id": clientOrderID,
		"symbol":          symbol,
		"side":            side,
		"qty":             qty,
		"status":          status,
		"timestamp":       timestamp.Unix(),
		"paper_trading":   paperTrading,
	}).Info("Order submission recorded")
}

// LogAccountSnapshot logs an account summary.
func (al *AuditLogger) LogAccountSnapshot(accountID, equity, cash, buyingPower string) {
	al.WithFields(logrus.Fields{
		"account_id":   accountID,
		"equity":       equity,
		"cash":         cash,
		"buying_power": buyingPower,
	}).Info("Account snapshot recorded")
}

// LogUploadFailure logs a file that could not be uploaded.
func (al *AuditLogger) LogUploadFailure(localPath, bucket, key string, err error) {
	al.WithFields(logrus.Fields{
		"local_path": localPath,
		"bucket":     bucket,
		"key":        key,
	}).WithError(err).Error("Upload failed")
}
