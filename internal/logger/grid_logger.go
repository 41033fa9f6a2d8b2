// Package logger provides grid-search logging.
package logger

import (
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/sirupsen/logrus"
)

// GridLogger provides dedicated logging for grid search runs.
type GridLogger struct {
	*logrus.Entry
	errorLog *logrus.Logger
}

// NewGridLogger creates a new grid logger. errorLog may be nil.
func NewGridLogger(baseLogger *logrus.Logger, errorLog *logrus.Logger) *GridLogger {
	return &GridLogger{
		Entry:    baseLogger.WithField("component", "grid"),
		errorLog: errorLog,
	}
}

func taskFields(key models.TaskKey) logrus.Fields {
	p := key.Params
	return logrus.Fields{
		"window_start": key.WindowStart.Format(models.DateLayout),
		"macd_fast":    p.MACDFast,
		"macd_slow":    p.MACDSlow,
		"macd_signal":  p.MACDSignal,
		"rsi_window":   p.RSIWindow,
		"rsi_buy":      p.RSIBuyThreshold,
		"rsi_sell":     p.RSISellThreshold,
	}
}

// LogRunStart logs the plan of a grid run.
func (gl *GridLogger) LogRunStart(runID, symbol string, windows, combinations, pending, resumed, workers int) {
	gl.WithFields(logrus.Fields{
		"run_id":       runID,
		"symbol":       symbol,
		"windows":      windows,
		"combinations": combinations,
		"pending":      pending,
		"resumed":      resumed,
		"workers":      workers,
	}).Info("Grid run started")
}

// LogTaskFailure logs a failed task and appends it to the error log.
func (gl *GridLogger) LogTaskFailure(key models.TaskKey, err error) {
	fields := taskFields(key)
	fields["task_key"] = key.String()
	gl.WithFields(fields).WithError(err).Warn("Grid task failed")
	if gl.errorLog != nil {
		gl.errorLog.WithFields(fields).WithError(err).Error("task failed")
	}
}

// LogCheckpoint logs a successful snapshot.
func (gl *GridLogger) LogCheckpoint(records, highPerformers int, bestFinalValue float64, duration time.Duration) {
	gl.WithFields(logrus.Fields{
		"records":          records,
		"high_performers":  highPerformers,
		"best_final_value": bestFinalValue,
		"duration_ms":      duration.Milliseconds(),
	}).Info("Checkpoint saved")
}

// LogCheckpointFailure logs a failed snapshot; records stay in memory.
func (gl *GridLogger) LogCheckpointFailure(records int, err error) {
	gl.WithFields(logrus.Fields{
		"records": records,
	}).WithError(err).Error("Checkpoint failed")
}

// LogProgress logs throughput and ETA.
func (gl *GridLogger) LogProgress(completed, total int, ratePerSecond float64, eta time.Duration) {
	percent := 0.0
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}
	gl.WithFields(logrus.Fields{
		"completed":    completed,
		"total":        total,
		"percent":      percent,
		"rate_per_sec": ratePerSecond,
		"eta":          eta.Round(time.Second).String(),
	}).Info("Grid progress")
}

// LogRunSummary logs end-of-run counts.
func (gl *GridLogger) LogRunSummary(runID string, succeeded, skippedInvalid, failed, resumed int, bestFinalValue float64, duration time.Duration) {
	gl.WithFields(logrus.Fields{
		"run_id":           runID,
		"succeeded":        succeeded,
		"skipped_invalid":  skippedInvalid,
		"failed":           failed,
		"resumed":          resumed,
		"best_final_value": bestFinalValue,
		"duration":         duration.Round(time.Millisecond).String(),
	}).Info("Grid run completed")
}
