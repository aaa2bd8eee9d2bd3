// Package config loads the immutable process configuration: accounts,
// asset routes, agent budgets, and per-service resilience thresholds.
// Everything here is read once at startup and never mutated.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/cryptoagent/resilience"
)

// Owner classifies which agent an account belongs to.
const (
	OwnerBusiness = "business"
	OwnerPersonal = "personal"
)

// Config is the complete runner configuration.
type Config struct {
	QuoteCurrency  string            `json:"quote_currency" yaml:"quote_currency"`
	Accounts       []Account         `json:"accounts" yaml:"accounts"`
	Routes         map[string]string `json:"routes" yaml:"routes"` // asset -> account id
	DefaultAccount string            `json:"default_account,omitempty" yaml:"default_account,omitempty"`
	Business       BusinessConfig    `json:"business" yaml:"business"`
	Personal       PersonalConfig    `json:"personal" yaml:"personal"`
	Sentiment      SentimentConfig   `json:"sentiment" yaml:"sentiment"`
	Resilience     ResilienceConfig  `json:"resilience" yaml:"resilience"`
	TradeLog       TradeLogConfig    `json:"trade_log" yaml:"trade_log"`
	Paper          PaperConfig       `json:"paper" yaml:"paper"`
}

// Account identifies one exchange credential pair. Secrets themselves
// stay in the environment; the config only names the variables.
type Account struct {
	ID           string `json:"id" yaml:"id"`
	Exchange     string `json:"exchange" yaml:"exchange"`
	Owner        string `json:"owner" yaml:"owner"`
	APIKeyEnv    string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	APISecretEnv string `json:"api_secret_env,omitempty" yaml:"api_secret_env,omitempty"`
}

// BusinessConfig parameterizes the accumulation strategy.
type BusinessConfig struct {
	Name       string             `json:"name" yaml:"name"`
	BaseBudget float64            `json:"base_budget" yaml:"base_budget"`
	Targets    map[string]float64 `json:"targets" yaml:"targets"` // asset -> target share
	MinGap     float64            `json:"min_gap" yaml:"min_gap"` // minimum allocation gap to act on
}

// PersonalConfig parameterizes the day-trading strategy.
type PersonalConfig struct {
	Name        string   `json:"name" yaml:"name"`
	DailyBudget float64  `json:"daily_budget" yaml:"daily_budget"`
	Assets      []string `json:"assets" yaml:"assets"`
	RangeLow    float64  `json:"range_low" yaml:"range_low"`   // ranging band lower bound
	RangeHigh   float64  `json:"range_high" yaml:"range_high"` // ranging band upper bound
	WindowSize  int      `json:"window_size" yaml:"window_size"`
}

// SentimentConfig locates the fear/greed source.
type SentimentConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Timeout  string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g. "10s"
}

// ParseTimeout converts the timeout string to a duration; empty means
// "use the client default".
func (s SentimentConfig) ParseTimeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Timeout)
}

// ServiceConfig carries the resilience thresholds for one external
// service. Durations are strings ("120s", "1m") like elsewhere in the
// config file.
type ServiceConfig struct {
	FailureThreshold int     `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	SuccessThreshold int     `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty"`
	BreakerTimeout   string  `json:"breaker_timeout,omitempty" yaml:"breaker_timeout,omitempty"`
	MaxAttempts      int     `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	BaseDelay        string  `json:"base_delay,omitempty" yaml:"base_delay,omitempty"`
	MaxDelay         string  `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
	ExponentialBase  float64 `json:"exponential_base,omitempty" yaml:"exponential_base,omitempty"`
	RatePerSecond    float64 `json:"rate_per_second,omitempty" yaml:"rate_per_second,omitempty"`
	RateBurst        int     `json:"rate_burst,omitempty" yaml:"rate_burst,omitempty"`
	CacheTTL         string  `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
	CacheSize        int     `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
}

// ResilienceConfig holds the default thresholds plus per-service
// overrides keyed by exchange/service name.
type ResilienceConfig struct {
	Default  ServiceConfig            `json:"default" yaml:"default"`
	Services map[string]ServiceConfig `json:"services,omitempty" yaml:"services,omitempty"`
}

// ForService returns the effective config for a service, overlaying the
// override (if any) on the defaults.
func (r ResilienceConfig) ForService(name string) ServiceConfig {
	cfg := r.Default
	override, ok := r.Services[name]
	if !ok {
		return cfg
	}
	if override.FailureThreshold > 0 {
		cfg.FailureThreshold = override.FailureThreshold
	}
	if override.SuccessThreshold > 0 {
		cfg.SuccessThreshold = override.SuccessThreshold
	}
	if override.BreakerTimeout != "" {
		cfg.BreakerTimeout = override.BreakerTimeout
	}
	if override.MaxAttempts > 0 {
		cfg.MaxAttempts = override.MaxAttempts
	}
	if override.BaseDelay != "" {
		cfg.BaseDelay = override.BaseDelay
	}
	if override.MaxDelay != "" {
		cfg.MaxDelay = override.MaxDelay
	}
	if override.ExponentialBase > 0 {
		cfg.ExponentialBase = override.ExponentialBase
	}
	if override.RatePerSecond > 0 {
		cfg.RatePerSecond = override.RatePerSecond
	}
	if override.RateBurst > 0 {
		cfg.RateBurst = override.RateBurst
	}
	if override.CacheTTL != "" {
		cfg.CacheTTL = override.CacheTTL
	}
	if override.CacheSize > 0 {
		cfg.CacheSize = override.CacheSize
	}
	return cfg
}

// BreakerConfig converts to the resilience layer's breaker thresholds.
func (s ServiceConfig) BreakerConfig() (resilience.BreakerConfig, error) {
	cfg := resilience.BreakerConfig{
		FailureThreshold: s.FailureThreshold,
		SuccessThreshold: s.SuccessThreshold,
	}
	if s.BreakerTimeout != "" {
		d, err := time.ParseDuration(s.BreakerTimeout)
		if err != nil {
			return cfg, fmt.Errorf("breaker_timeout: %w", err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// RetryConfig converts to the resilience layer's retry schedule.
func (s ServiceConfig) RetryConfig() (resilience.RetryConfig, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:     s.MaxAttempts,
		ExponentialBase: s.ExponentialBase,
	}
	if s.BaseDelay != "" {
		d, err := time.ParseDuration(s.BaseDelay)
		if err != nil {
			return cfg, fmt.Errorf("base_delay: %w", err)
		}
		cfg.BaseDelay = d
	}
	if s.MaxDelay != "" {
		d, err := time.ParseDuration(s.MaxDelay)
		if err != nil {
			return cfg, fmt.Errorf("max_delay: %w", err)
		}
		cfg.MaxDelay = d
	}
	return cfg, nil
}

// LimitConfig converts to the resilience layer's token bucket.
func (s ServiceConfig) LimitConfig() resilience.LimitConfig {
	if s.RatePerSecond <= 0 {
		return resilience.DefaultLimitConfig()
	}
	burst := s.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return resilience.LimitConfig{PerSecond: s.RatePerSecond, Burst: burst}
}

// CacheSettings returns the cache size and TTL for the service.
func (s ServiceConfig) CacheSettings() (int, time.Duration, error) {
	ttl := 60 * time.Second
	if s.CacheTTL != "" {
		d, err := time.ParseDuration(s.CacheTTL)
		if err != nil {
			return 0, 0, fmt.Errorf("cache_ttl: %w", err)
		}
		ttl = d
	}
	size := s.CacheSize
	if size <= 0 {
		size = 256
	}
	return size, ttl, nil
}

// TradeLogConfig selects and locates the trade log backend.
type TradeLogConfig struct {
	Type       string `json:"type" yaml:"type"` // "jsonl" or "sqlite"
	Path       string `json:"path" yaml:"path"`
	MaxEntries int    `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
}

// PaperConfig seeds the simulated accounts for paper mode.
type PaperConfig struct {
	// Balances is keyed by account id, then asset.
	Balances map[string]map[string]float64 `json:"balances" yaml:"balances"`
	// Prices seeds the simulated market, keyed by asset.
	Prices  map[string]float64 `json:"prices" yaml:"prices"`
	FeeRate float64            `json:"fee_rate,omitempty" yaml:"fee_rate,omitempty"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// AccountByID looks up an account.
func (c *Config) AccountByID(id string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.QuoteCurrency == "" {
		return fmt.Errorf("quote_currency is required")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	seen := map[string]bool{}
	for i, a := range c.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Exchange == "" {
			return fmt.Errorf("account %s: exchange is required", a.ID)
		}
		if a.Owner != OwnerBusiness && a.Owner != OwnerPersonal {
			return fmt.Errorf("account %s: owner must be %q or %q", a.ID, OwnerBusiness, OwnerPersonal)
		}
	}

	for asset, accountID := range c.Routes {
		if !seen[accountID] {
			return fmt.Errorf("route %s -> %s: unknown account", asset, accountID)
		}
	}
	if c.DefaultAccount != "" && !seen[c.DefaultAccount] {
		return fmt.Errorf("default_account %q: unknown account", c.DefaultAccount)
	}

	if c.Business.BaseBudget <= 0 {
		return fmt.Errorf("business.base_budget must be positive")
	}
	if len(c.Business.Targets) == 0 {
		return fmt.Errorf("business.targets must not be empty")
	}
	var total float64
	for asset, share := range c.Business.Targets {
		if share <= 0 {
			return fmt.Errorf("business.targets[%s] must be positive", asset)
		}
		total += share
	}
	if total > 1.0+1e-9 {
		return fmt.Errorf("business.targets must sum to at most 1.0, got %.4f", total)
	}
	if c.Business.MinGap <= 0 || c.Business.MinGap >= 1 {
		return fmt.Errorf("business.min_gap must be in (0, 1)")
	}

	if c.Personal.DailyBudget <= 0 {
		return fmt.Errorf("personal.daily_budget must be positive")
	}
	if len(c.Personal.Assets) == 0 {
		return fmt.Errorf("personal.assets must not be empty")
	}
	if c.Personal.RangeLow < 0 || c.Personal.RangeHigh > 100 || c.Personal.RangeLow >= c.Personal.RangeHigh {
		return fmt.Errorf("personal ranging band must satisfy 0 <= range_low < range_high <= 100")
	}

	if c.Sentiment.Endpoint == "" {
		return fmt.Errorf("sentiment.endpoint is required")
	}
	if _, err := c.Sentiment.ParseTimeout(); err != nil {
		return fmt.Errorf("sentiment.timeout: %w", err)
	}

	// Normalized here so backend selection can match exact strings.
	c.TradeLog.Type = strings.ToLower(c.TradeLog.Type)
	switch c.TradeLog.Type {
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("trade_log.type must be 'jsonl' or 'sqlite'")
	}
	if c.TradeLog.Path == "" {
		return fmt.Errorf("trade_log.path is required")
	}

	// Surface duration parse errors at load time, not mid-cycle.
	services := append([]string{""}, serviceNames(c.Resilience.Services)...)
	for _, svc := range services {
		cfg := c.Resilience.ForService(svc)
		if _, err := cfg.BreakerConfig(); err != nil {
			return fmt.Errorf("resilience[%s]: %w", svc, err)
		}
		if _, err := cfg.RetryConfig(); err != nil {
			return fmt.Errorf("resilience[%s]: %w", svc, err)
		}
		if _, _, err := cfg.CacheSettings(); err != nil {
			return fmt.Errorf("resilience[%s]: %w", svc, err)
		}
	}

	return nil
}

func serviceNames(m map[string]ServiceConfig) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Default returns a configuration with sensible paper-mode defaults.
func Default() *Config {
	return &Config{
		QuoteCurrency: "USDT",
		Accounts: []Account{
			{ID: "biz-main", Exchange: "binance", Owner: OwnerBusiness,
				APIKeyEnv: "BINANCE_BIZ_API_KEY", APISecretEnv: "BINANCE_BIZ_API_SECRET"},
			{ID: "personal-main", Exchange: "binance", Owner: OwnerPersonal,
				APIKeyEnv: "BINANCE_PERSONAL_API_KEY", APISecretEnv: "BINANCE_PERSONAL_API_SECRET"},
		},
		Routes: map[string]string{
			"BTC": "biz-main",
			"ETH": "biz-main",
			"SOL": "personal-main",
		},
		DefaultAccount: "biz-main",
		Business: BusinessConfig{
			Name:       "dca-bot",
			BaseBudget: 28,
			Targets:    map[string]float64{"BTC": 0.6, "ETH": 0.4},
			MinGap:     0.02,
		},
		Personal: PersonalConfig{
			Name:        "day-bot",
			DailyBudget: 50,
			Assets:      []string{"SOL"},
			RangeLow:    40,
			RangeHigh:   60,
			WindowSize:  30,
		},
		Sentiment: SentimentConfig{
			Endpoint: "https://api.alternative.me/fng/",
			Timeout:  "10s",
		},
		Resilience: ResilienceConfig{
			Default: ServiceConfig{
				FailureThreshold: 5,
				SuccessThreshold: 3,
				BreakerTimeout:   "120s",
				MaxAttempts:      3,
				BaseDelay:        "1s",
				MaxDelay:         "60s",
				ExponentialBase:  2,
				RatePerSecond:    10,
				RateBurst:        20,
				CacheTTL:         "60s",
				CacheSize:        256,
			},
		},
		TradeLog: TradeLogConfig{
			Type:       "jsonl",
			Path:       "./trades.jsonl",
			MaxEntries: 10000,
		},
		Paper: PaperConfig{
			Balances: map[string]map[string]float64{
				"biz-main":      {"USDT": 1000},
				"personal-main": {"USDT": 500},
			},
			Prices: map[string]float64{
				"BTC": 67000,
				"ETH": 3500,
				"SOL": 150,
			},
			FeeRate: 0.001,
		},
	}
}
