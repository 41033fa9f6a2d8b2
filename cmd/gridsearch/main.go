// Package main provides the grid search command line tool.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/grid"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/health"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/logger"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/metrics"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	appLog     *logrus.Logger
	cfg        *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigPath, "Path to configuration file")
	rootCmd.AddCommand(searchCmd, backtestCmd, sweepCmd, fetchCmd, uploadCmd, scheduleCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:          "gridsearch",
	Short:        "Sliding-window MACD/RSI parameter search",
	Long:         `Fetches daily prices, searches MACD/RSI parameter combinations over sliding windows and uploads the results.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gridsearch %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	appLog = logger.NewLogger(cfg.App.LogLevel)
	metrics.InitRegistry()
	return nil
}

// startHealth serves health, metrics and live progress while ctx is alive.
// Each grid run started by svc is attached to the progress endpoint.
func startHealth(ctx context.Context, svc *service.SearchService) *health.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	srv := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Port:        cfg.Metrics.Port,
		Logger:      appLog,
	})
	if svc != nil {
		svc.OnRun(func(r *grid.Runner) {
			srv.SetProgress(r.Progress())
		})
	}
	if err := srv.Start(ctx); err != nil {
		appLog.WithError(err).Warn("Health server not started")
		return nil
	}
	srv.SetReady(true)
	return srv
}
