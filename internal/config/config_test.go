package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_DATA_DIR", dir)
	for _, key := range []string{"DATA_GATEWAY", "TRADE_GATEWAY", "POLL_INTERVAL", "SYMBOLS",
		"INITIAL_CAPITAL", "COMMISSION_RATE", "SLIPPAGE", "GO_PORT", "RECORD_TICKS", "REPLAY_PATH"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "sim", cfg.DataGateway)
	assert.Equal(t, "paper", cfg.TradeGateway)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"AAPL"}, cfg.Symbols)
	assert.Equal(t, 100000.0, cfg.InitialCapital)
	assert.Equal(t, 0.001, cfg.CommissionRate)
	assert.Equal(t, 0.0, cfg.Slippage)
	assert.Equal(t, 8001, cfg.Port)
	assert.Empty(t, cfg.RecordTicks)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TRADER_DATA_DIR", t.TempDir())
	t.Setenv("DATA_GATEWAY", "yahoo")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("SYMBOLS", " aapl, msft ,,")
	t.Setenv("INITIAL_CAPITAL", "5000")
	t.Setenv("COMMISSION_RATE", "0.002")
	t.Setenv("SLIPPAGE", "0.0005")
	t.Setenv("GO_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "yahoo", cfg.DataGateway)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Symbols)
	assert.Equal(t, 5000.0, cfg.InitialCapital)
	assert.Equal(t, 0.002, cfg.CommissionRate)
	assert.Equal(t, 0.0005, cfg.Slippage)
	assert.Equal(t, 8001, cfg.Port, "unparseable values fall back to the default")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DataGateway:    "sim",
			TradeGateway:   "paper",
			PollInterval:   time.Second,
			Symbols:        []string{"AAPL"},
			InitialCapital: 100000,
			CommissionRate: 0.001,
		}
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"negative capital", func(c *Config) { c.InitialCapital = -1 }, true},
		{"commission of one", func(c *Config) { c.CommissionRate = 1 }, true},
		{"negative commission", func(c *Config) { c.CommissionRate = -0.1 }, true},
		{"slippage too large", func(c *Config) { c.Slippage = 1.5 }, true},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"no symbols", func(c *Config) { c.Symbols = nil }, true},
		{"empty gateway", func(c *Config) { c.DataGateway = "" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
