package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlCfg := `
quote_currency: USDT
accounts:
  - id: biz-main
    exchange: binance
    owner: business
  - id: personal-main
    exchange: coinbase
    owner: personal
routes:
  BTC: biz-main
  SOL: personal-main
default_account: biz-main
business:
  name: dca-bot
  base_budget: 28
  targets:
    BTC: 0.6
    ETH: 0.4
  min_gap: 0.02
personal:
  name: day-bot
  daily_budget: 50
  assets: [SOL]
  range_low: 40
  range_high: 60
  window_size: 30
sentiment:
  endpoint: https://api.alternative.me/fng/
  timeout: 5s
resilience:
  default:
    failure_threshold: 5
    success_threshold: 3
    breaker_timeout: 120s
  services:
    coinbase:
      failure_threshold: 2
trade_log:
  type: jsonl
  path: ./trades.jsonl
  max_entries: 100
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlCfg), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "biz-main", cfg.Routes["BTC"])
	assert.Equal(t, 28.0, cfg.Business.BaseBudget)

	timeout, err := cfg.Sentiment.ParseTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
}

func TestForServiceOverlaysDefaults(t *testing.T) {
	t.Parallel()

	r := ResilienceConfig{
		Default: ServiceConfig{FailureThreshold: 5, SuccessThreshold: 3, BreakerTimeout: "120s"},
		Services: map[string]ServiceConfig{
			"coinbase": {FailureThreshold: 2},
		},
	}

	cb := r.ForService("coinbase")
	assert.Equal(t, 2, cb.FailureThreshold, "override applies")
	assert.Equal(t, 3, cb.SuccessThreshold, "default survives")

	bc, err := cb.BreakerConfig()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, bc.Timeout)
}

func TestValidateNormalizesTradeLogType(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.TradeLog.Type = "SQLite"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.TradeLog.Type, "backend selection matches exact strings")
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no_accounts", func(c *Config) { c.Accounts = nil }, "at least one account"},
		{"bad_owner", func(c *Config) { c.Accounts[0].Owner = "corporate" }, "owner must be"},
		{"duplicate_account", func(c *Config) { c.Accounts[1].ID = c.Accounts[0].ID }, "duplicate account id"},
		{"unknown_route", func(c *Config) { c.Routes["XRP"] = "ghost" }, "unknown account"},
		{"unknown_default", func(c *Config) { c.DefaultAccount = "ghost" }, "unknown account"},
		{"zero_budget", func(c *Config) { c.Business.BaseBudget = 0 }, "base_budget must be positive"},
		{"targets_over_one", func(c *Config) { c.Business.Targets = map[string]float64{"BTC": 0.8, "ETH": 0.4} }, "sum to at most"},
		{"bad_band", func(c *Config) { c.Personal.RangeLow = 70; c.Personal.RangeHigh = 60 }, "ranging band"},
		{"no_sentiment", func(c *Config) { c.Sentiment.Endpoint = "" }, "sentiment.endpoint"},
		{"bad_log_type", func(c *Config) { c.TradeLog.Type = "csv" }, "trade_log.type"},
		{"bad_duration", func(c *Config) { c.Resilience.Default.BreakerTimeout = "two minutes" }, "breaker_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
