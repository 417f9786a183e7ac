// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the backtest archive and tick recordings (always absolute)
	LogLevel string
	Pretty   bool
	Port     int

	DataGateway  string // Registry key of the market-data gateway ("sim", "yahoo", "replay")
	TradeGateway string // Registry key of the trade gateway ("paper")
	PollInterval time.Duration
	Symbols      []string

	InitialCapital float64
	CommissionRate float64
	Slippage       float64

	YahooBaseURL   string
	RecordTicks    string // Path of the msgpack tick recording, empty disables recording
	ReplayPath     string // Recording consumed by the "replay" gateway
	ReportSchedule string // Cron spec for the portfolio report job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRADER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Pretty:         getEnvAsBool("LOG_PRETTY", true),
		Port:           getEnvAsInt("GO_PORT", 8001),
		DataGateway:    getEnv("DATA_GATEWAY", "sim"),
		TradeGateway:   getEnv("TRADE_GATEWAY", "paper"),
		PollInterval:   getEnvAsDuration("POLL_INTERVAL", time.Second),
		Symbols:        getEnvAsList("SYMBOLS", []string{"AAPL"}),
		InitialCapital: getEnvAsFloat("INITIAL_CAPITAL", 100000),
		CommissionRate: getEnvAsFloat("COMMISSION_RATE", 0.001),
		Slippage:       getEnvAsFloat("SLIPPAGE", 0),
		YahooBaseURL:   getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		RecordTicks:    getEnv("RECORD_TICKS", ""),
		ReplayPath:     getEnv("REPLAY_PATH", filepath.Join(absDataDir, "ticks.msgpack")),
		ReportSchedule: getEnv("REPORT_SCHEDULE", "@every 30s"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the numeric knobs and required fields
func (c *Config) Validate() error {
	if c.InitialCapital < 0 {
		return fmt.Errorf("%w: initial capital must be non-negative, got %v", ErrInvalidConfig, c.InitialCapital)
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("%w: commission rate must be in [0, 1), got %v", ErrInvalidConfig, c.CommissionRate)
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return fmt.Errorf("%w: slippage must be in [0, 1), got %v", ErrInvalidConfig, c.Slippage)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalidConfig, c.PollInterval)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: at least one symbol is required", ErrInvalidConfig)
	}
	if c.DataGateway == "" || c.TradeGateway == "" {
		return fmt.Errorf("%w: gateway names must not be empty", ErrInvalidConfig)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, trimming blanks and upper-casing symbols.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
