package backtest

import (
	"fmt"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
)

// BacktestConfig holds the settings shared by every simulated run
type BacktestConfig struct {
	InitialCash    float64
	WindowLength   int
	HighPerformerX float64
	OutputDir      string
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.GridConfig, outputDir string) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, fmt.Errorf("grid config is required")
	}
	bt := BacktestConfig{
		InitialCash:    cfg.InitialCash,
		WindowLength:   cfg.WindowLength,
		HighPerformerX: cfg.HighPerformerMultiple,
		OutputDir:      outputDir,
	}
	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (b BacktestConfig) Validate() error {
	if b.InitialCash <= 0 {
		return fmt.Errorf("initial cash must be positive")
	}
	if b.WindowLength < 1 {
		return fmt.Errorf("window length must be at least 1")
	}
	if b.HighPerformerX <= 0 {
		return fmt.Errorf("high performer multiple must be positive")
	}
	return nil
}
