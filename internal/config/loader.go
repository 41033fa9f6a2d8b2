// Package config provides configuration management for the grid search tools.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. GRIDSEARCH_GRID_WINDOW_LENGTH
	EnvPrefix = "GRIDSEARCH"
	// DefaultConfigPath is used when no path is given
	DefaultConfigPath = "config/config.yaml"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// readExpanded reads path and expands ${VAR} placeholders
func readExpanded(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	expanded := os.ExpandEnv(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	v := newViper()
	if err := readExpanded(v, configPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if err := readExpanded(v, configPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tqqq-gridsearch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("data.symbol", "TQQQ")
	v.SetDefault("data.source", "yahoo")
	v.SetDefault("data.interval", "1d")
	v.SetDefault("data.csv_path", "data/tqqq_daily.csv")
	v.SetDefault("data.provider_url", "https://query1.finance.yahoo.com")
	v.SetDefault("data.rate_limit", 2.0)
	v.SetDefault("data.timeout_seconds", 30)
	v.SetDefault("data.max_retries", 3)

	grid := models.DefaultParameterGrid()
	v.SetDefault("grid.window_length", 63)
	v.SetDefault("grid.initial_cash", 10000.0)
	v.SetDefault("grid.high_performer_multiple", 16.0)
	v.SetDefault("grid.workers", 0)
	v.SetDefault("grid.macd_fast", grid.MACDFast)
	v.SetDefault("grid.macd_slow", grid.MACDSlow)
	v.SetDefault("grid.macd_signal", grid.MACDSignal)
	v.SetDefault("grid.rsi_window", grid.RSIWindow)
	v.SetDefault("grid.rsi_buy", grid.RSIBuy)
	v.SetDefault("grid.rsi_sell", grid.RSISell)

	v.SetDefault("checkpoint.every_tasks", 100)
	v.SetDefault("checkpoint.every_seconds", 300)
	v.SetDefault("checkpoint.progress_every_tasks", 500)

	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.output_dir", "results")
	v.SetDefault("store.results_file", "all_3month_strategies.csv")
	v.SetDefault("store.best_file", "explosive_strategy_result.csv")
	v.SetDefault("store.high_performers_file", "explosive_over_16x.csv")
	v.SetDefault("store.error_log_file", "error_log.txt")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("broker.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("broker.paper", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}
