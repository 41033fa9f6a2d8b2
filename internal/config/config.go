// Package config provides configuration management for the grid search tools.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Data       DataConfig       `mapstructure:"data" validate:"required"`
	Grid       GridConfig       `mapstructure:"grid" validate:"required"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" validate:"required"`
	Store      StoreConfig      `mapstructure:"store" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	AWSSecrets AWSSecretsConfig `mapstructure:"aws_secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DataConfig describes where price bars come from
type DataConfig struct {
	Symbol         string  `mapstructure:"symbol" validate:"required"`
	Source         string  `mapstructure:"source" validate:"required,oneof=yahoo alpaca csv"`
	StartDate      string  `mapstructure:"start_date" validate:"omitempty,date"`
	EndDate        string  `mapstructure:"end_date" validate:"omitempty,date"`
	Interval       string  `mapstructure:"interval" validate:"required,oneof=1d 1wk 1mo"`
	CSVPath        string  `mapstructure:"csv_path" validate:"required"`
	ProviderURL    string  `mapstructure:"provider_url" validate:"omitempty,url"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"gte=0"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	MaxRetries     int     `mapstructure:"max_retries" validate:"gte=0"`
}

// GridConfig represents the sliding-window parameter grid
type GridConfig struct {
	WindowLength          int       `mapstructure:"window_length" validate:"required,gte=1"`
	InitialCash           float64   `mapstructure:"initial_cash" validate:"required,gt=0"`
	HighPerformerMultiple float64   `mapstructure:"high_performer_multiple" validate:"required,gt=0"`
	Workers               int       `mapstructure:"workers" validate:"gte=0"`
	MACDFast              []int     `mapstructure:"macd_fast" validate:"required,min=1,dive,gt=0"`
	MACDSlow              []int     `mapstructure:"macd_slow" validate:"required,min=1,dive,gt=0"`
	MACDSignal            []int     `mapstructure:"macd_signal" validate:"required,min=1,dive,gt=0"`
	RSIWindow             []int     `mapstructure:"rsi_window" validate:"required,min=1,dive,gte=2"`
	RSIBuy                []float64 `mapstructure:"rsi_buy" validate:"required,min=1,dive,rsithreshold"`
	RSISell               []float64 `mapstructure:"rsi_sell" validate:"required,min=1,dive,rsithreshold"`
}

// CheckpointConfig controls snapshot cadence
type CheckpointConfig struct {
	EveryTasks         int `mapstructure:"every_tasks" validate:"gte=0"`
	EverySeconds       int `mapstructure:"every_seconds" validate:"gte=0"`
	ProgressEveryTasks int `mapstructure:"progress_every_tasks" validate:"gte=0"`
}

// StoreConfig selects and names the result store
type StoreConfig struct {
	Driver             string `mapstructure:"driver" validate:"required,oneof=csv postgres"`
	OutputDir          string `mapstructure:"output_dir" validate:"required"`
	ResultsFile        string `mapstructure:"results_file" validate:"required"`
	BestFile           string `mapstructure:"best_file" validate:"required"`
	HighPerformersFile string `mapstructure:"high_performers_file" validate:"required"`
	ErrorLogFile       string `mapstructure:"error_log_file" validate:"required"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"gte=0"`
}

// BrokerConfig represents brokerage API configuration
type BrokerConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url" validate:"omitempty,url"`
	DataURL   string `mapstructure:"data_url" validate:"omitempty,url"`
	Symbol    string `mapstructure:"symbol"`
	Paper     bool   `mapstructure:"paper"`
}

// UploadTarget maps one local directory to a bucket prefix
type UploadTarget struct {
	LocalDir string `mapstructure:"local_dir" validate:"required"`
	Prefix   string `mapstructure:"prefix" validate:"required"`
}

// UploadConfig represents object storage upload configuration
type UploadConfig struct {
	Bucket  string         `mapstructure:"bucket"`
	Region  string         `mapstructure:"region"`
	Targets []UploadTarget `mapstructure:"targets" validate:"dive"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// ScheduleConfig represents the cron pipeline schedule
type ScheduleConfig struct {
	Pipeline string `mapstructure:"pipeline"`
}

// AWSSecretsConfig enables the Secrets Manager overlay
type AWSSecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// OutputPath joins a store file name onto the output directory
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.Store.OutputDir, name)
}

// WorkerCount resolves the worker pool size, max(NumCPU-1, 2) when unset
func (g GridConfig) WorkerCount() int {
	if g.Workers > 0 {
		return g.Workers
	}
	n := runtime.NumCPU() - 1
	if n < 2 {
		n = 2
	}
	return n
}

// CheckpointInterval returns the wall-clock snapshot interval
func (c CheckpointConfig) CheckpointInterval() time.Duration {
	return time.Duration(c.EverySeconds) * time.Second
}

// Candidates returns the parameter candidate lists as a models grid
func (g GridConfig) Candidates() models.ParameterGrid {
	return models.ParameterGrid{
		MACDFast:   g.MACDFast,
		MACDSlow:   g.MACDSlow,
		MACDSignal: g.MACDSignal,
		RSIWindow:  g.RSIWindow,
		RSIBuy:     g.RSIBuy,
		RSISell:    g.RSISell,
	}
}

// DateRange parses the optional data start and end dates
func (d DataConfig) DateRange() (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if d.StartDate != "" {
		if start, err = time.Parse(models.DateLayout, d.StartDate); err != nil {
			return start, end, fmt.Errorf("invalid start_date: %w", err)
		}
	}
	if d.EndDate != "" {
		if end, err = time.Parse(models.DateLayout, d.EndDate); err != nil {
			return start, end, fmt.Errorf("invalid end_date: %w", err)
		}
	}
	return start, end, nil
}
