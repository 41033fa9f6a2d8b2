package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	mu      sync.Mutex
	objects map[string]string
	failOn  string
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	if f.failOn != "" && strings.HasSuffix(key, f.failOn) {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[aws.ToString(params.Bucket)+"/"+key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDatedPrefix(t *testing.T) {
	day := time.Date(2025, 7, 4, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "tqqq/2025-07-04/", DatedPrefix("tqqq/", day))
	assert.Equal(t, "tqqq/2025-07-04/", DatedPrefix("tqqq", day))
	assert.Equal(t, "2025-07-04/", DatedPrefix("", day))
}

func TestUploadTargets(t *testing.T) {
	root := t.TempDir()
	results := filepath.Join(root, "results")
	writeFile(t, filepath.Join(results, "all_3month_strategies.csv"), "a")
	writeFile(t, filepath.Join(results, "nested", "top01.csv"), "b")
	writeFile(t, filepath.Join(results, "broken.csv"), "c")

	putter := &fakePutter{failOn: "broken.csv"}
	base := logrus.New()
	base.SetOutput(io.Discard)
	uploader := NewUploader(putter, "tqqq-backtest", base)
	day := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	uploader.now = func() time.Time { return day }

	report, err := uploader.UploadTargets(context.Background(), []config.UploadTarget{
		{LocalDir: results, Prefix: "tqqq/"},
		{LocalDir: filepath.Join(root, "missing"), Prefix: "sqqq/"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Uploaded)
	require.Equal(t, 1, report.FailedCount())
	assert.Equal(t, "tqqq/2025-07-04/broken.csv", report.Failed[0].Key)
	assert.Equal(t, []string{filepath.Join(root, "missing")}, report.Skipped)
	assert.Equal(t, "a", putter.objects["tqqq-backtest/tqqq/2025-07-04/all_3month_strategies.csv"])
	assert.Equal(t, "b", putter.objects["tqqq-backtest/tqqq/2025-07-04/nested/top01.csv"])

	logPath, err := WriteFailureLog(root, day, report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "upload_failed_log_2025-07-04.txt"), logPath)
	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "broken.csv: access denied")
}

func TestWriteFailureLogNothingFailed(t *testing.T) {
	logPath, err := WriteFailureLog(t.TempDir(), time.Now(), &Report{Uploaded: 3})
	require.NoError(t, err)
	assert.Empty(t, logPath)
}
