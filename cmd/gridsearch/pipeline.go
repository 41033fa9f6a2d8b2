package main

import (
	"context"
	"fmt"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/datasource"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/scheduler"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/service"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/upload"
	"github.com/spf13/cobra"
)

var fetchSource string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download daily prices to the configured CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ingestion, req, err := buildIngestion()
		if err != nil {
			return err
		}
		series, m, err := ingestion.Ingest(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %d %s bars (%s to %s) to %s\n", series.Len(), series.Symbol,
			series.First().Format("2006-01-02"), series.Last().Format("2006-01-02"), cfg.Data.CSVPath)
		fmt.Println(m.String())
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload result and data directories to S3 under a dated prefix",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		uploader, err := buildUploader(ctx)
		if err != nil {
			return err
		}
		report, err := uploader.UploadTargets(ctx, cfg.Upload.Targets)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %d files, %d failed, %d directories skipped\n",
			report.Uploaded, report.FailedCount(), len(report.Skipped))
		if report.FailedCount() > 0 {
			path, err := upload.WriteFailureLog(cfg.Store.OutputDir, time.Now(), report)
			if err != nil {
				return err
			}
			return fmt.Errorf("%d uploads failed, see %s", report.FailedCount(), path)
		}
		return nil
	},
}

var (
	scheduleCron   string
	scheduleRunNow bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run fetch, search and upload on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		expr := scheduleCron
		if expr == "" {
			expr = cfg.Schedule.Pipeline
		}
		if expr == "" && !scheduleRunNow {
			return fmt.Errorf("no schedule: set schedule.pipeline or pass --cron")
		}

		ingestion, req, err := buildIngestion()
		if err != nil {
			return err
		}
		search := service.NewSearchService(cfg, appLog)
		startHealth(ctx, search)

		var uploader service.TargetUploader
		if cfg.Upload.Bucket != "" {
			u, err := buildUploader(ctx)
			if err != nil {
				return err
			}
			uploader = u
		}

		pipeline := service.NewPipeline(ingestion, req, search, uploader, cfg.Upload.Targets, cfg.Store.OutputDir, appLog)
		sched := scheduler.NewScheduler(pipeline, appLog)

		if scheduleRunNow {
			if err := sched.RunNow(ctx); err != nil {
				appLog.WithError(err).Error("Initial pipeline run failed")
			}
			if expr == "" {
				return nil
			}
		}

		if _, err := sched.SchedulePipeline(expr); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		appLog.WithField("next_run", sched.GetNextRun()).Info("Waiting for scheduled runs")

		<-ctx.Done()
		appLog.Info("Shutdown signal received")
		return sched.Stop()
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSource, "source", "", "Price source: yahoo, alpaca or csv (default data.source)")
	scheduleCmd.Flags().StringVar(&fetchSource, "source", "", "Price source: yahoo, alpaca or csv (default data.source)")
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "Cron expression (default schedule.pipeline)")
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "Run the pipeline once before waiting")
}

func buildIngestion() (*service.IngestionService, datasource.FetchRequest, error) {
	factory := datasource.NewFactory(cfg, appLog)
	sourceType := datasource.SourceType(cfg.Data.Source)
	if fetchSource != "" {
		sourceType = datasource.SourceType(fetchSource)
	}
	source, err := factory.Create(sourceType)
	if err != nil {
		return nil, datasource.FetchRequest{}, err
	}
	req, err := factory.Request()
	if err != nil {
		return nil, datasource.FetchRequest{}, err
	}
	return service.NewIngestionService(source, service.NewDataValidator(appLog), cfg.Data.CSVPath, appLog), req, nil
}

func buildUploader(ctx context.Context) (*upload.Uploader, error) {
	if cfg.Upload.Bucket == "" {
		return nil, fmt.Errorf("upload.bucket is required")
	}
	client, err := upload.NewS3Client(ctx, cfg.Upload.Region)
	if err != nil {
		return nil, err
	}
	return upload.NewUploader(client, cfg.Upload.Bucket, appLog), nil
}
