// Package upload copies local result directories to S3 under dated prefixes.
package upload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/logger"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/metrics"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// ObjectPutter is the subset of the S3 client used for uploads
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// FailedFile records one file that could not be uploaded
type FailedFile struct {
	LocalPath string
	Key       string
	Err       error
}

// Report counts the outcome of an upload run
type Report struct {
	Uploaded int
	Failed   []FailedFile
	Skipped  []string
}

// FailedCount returns the number of failed files
func (r *Report) FailedCount() int {
	return len(r.Failed)
}

// Uploader pushes directory trees to one bucket
type Uploader struct {
	client ObjectPutter
	bucket string
	audit  *logger.AuditLogger
	logger *logrus.Entry
	now    func() time.Time
}

// NewUploader creates an uploader for bucket
func NewUploader(client ObjectPutter, bucket string, base *logrus.Logger) *Uploader {
	if base == nil {
		base = logrus.New()
	}
	return &Uploader{
		client: client,
		bucket: bucket,
		audit:  logger.NewAuditLogger(base),
		logger: base.WithField("component", "upload"),
		now:    time.Now,
	}
}

// NewS3Client loads the default AWS credential chain for region
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// DatedPrefix returns "<prefix><YYYY-MM-DD>/"
func DatedPrefix(prefix string, day time.Time) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + day.Format(models.DateLayout) + "/"
}

// UploadTargets uploads every target; missing local directories are skipped
func (u *Uploader) UploadTargets(ctx context.Context, targets []config.UploadTarget) (*Report, error) {
	report := &Report{}
	day := u.now()

	for _, target := range targets {
		info, err := os.Stat(target.LocalDir)
		if err != nil || !info.IsDir() {
			u.logger.WithField("local_dir", target.LocalDir).Warn("Skipping missing upload directory")
			report.Skipped = append(report.Skipped, target.LocalDir)
			continue
		}

		prefix := DatedPrefix(target.Prefix, day)
		u.logger.WithFields(logrus.Fields{
			"local_dir": target.LocalDir,
			"bucket":    u.bucket,
			"prefix":    prefix,
		}).Info("Uploading directory")

		if err := u.uploadDir(ctx, target.LocalDir, prefix, report); err != nil {
			return report, err
		}
	}

	u.logger.WithFields(logrus.Fields{
		"uploaded": report.Uploaded,
		"failed":   report.FailedCount(),
		"skipped":  len(report.Skipped),
	}).Info("Upload complete")
	return report, nil
}

func (u *Uploader) uploadDir(ctx context.Context, root, prefix string, report *Report) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := prefix + path.Clean(filepath.ToSlash(rel))

		if err := u.uploadFile(ctx, p, key); err != nil {
			metrics.RecordUpload(false)
			u.audit.LogUploadFailure(p, u.bucket, key, err)
			report.Failed = append(report.Failed, FailedFile{LocalPath: p, Key: key, Err: err})
			return nil
		}
		metrics.RecordUpload(true)
		report.Uploaded++
		return nil
	})
}

func (u *Uploader) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}

// WriteFailureLog writes one "<path>: <error>" line per failed file.
// It returns "" without writing when nothing failed.
func WriteFailureLog(dir string, day time.Time, report *Report) (string, error) {
	if report.FailedCount() == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	logPath := filepath.Join(dir, fmt.Sprintf("upload_failed_log_%s.txt", day.Format(models.DateLayout)))

	var b strings.Builder
	for _, f := range report.Failed {
		fmt.Fprintf(&b, "%s: %v\n", f.LocalPath, f.Err)
	}
	if err := os.WriteFile(logPath, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return logPath, nil
}
