package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/cryptoagent/agent"
	"github.com/rustyeddy/cryptoagent/budget"
	"github.com/rustyeddy/cryptoagent/config"
	"github.com/rustyeddy/cryptoagent/exchange"
	"github.com/rustyeddy/cryptoagent/resilience"
	"github.com/rustyeddy/cryptoagent/runner"
	"github.com/rustyeddy/cryptoagent/sentiment"
	"github.com/rustyeddy/cryptoagent/tradelog"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading agents for a number of cycles",
	Long: `Run both agents through trading cycles.

Paper mode (the default) trades against a simulated exchange seeded
from the config. Live mode places real orders and requires typing
"yes" at the confirmation prompt before anything else happens.

Example:
  cryptoagent run --config config.yaml --mode paper --cycles 3`,
	RunE: runRun,
}

var (
	runConfigPath string
	runMode       string
	runCycles     int
	runInterval   time.Duration
	runVerbose    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON); omit for built-in paper defaults")
	runCmd.Flags().StringVar(&runMode, "mode", "paper", "execution mode: paper or live")
	runCmd.Flags().IntVar(&runCycles, "cycles", 1, "number of cycles to run; 0 runs until interrupted")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "pause between cycles, e.g. 1h")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "debug logging")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Credentials live in the environment; a .env file is a convenience,
	// not a requirement.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var mode tradelog.Mode
	switch runMode {
	case "paper":
		mode = tradelog.Paper
	case "live":
		mode = tradelog.Live
	default:
		return fmt.Errorf("invalid mode %q: must be paper or live", runMode)
	}
	if runCycles < 0 {
		return fmt.Errorf("cycles must be >= 0, got %d", runCycles)
	}

	level := slog.LevelInfo
	if runVerbose {
		level = slog.LevelDebug
	}
	alerts := resilience.NewAlertManager(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	)

	clock := resilience.RealClock()
	breakers := resilience.NewBreakerSet(func(service string) resilience.BreakerConfig {
		bc, _ := cfg.Resilience.ForService(service).BreakerConfig() // validated at load
		return bc
	}, clock)
	breakers.OnTransition(func(service string, from, to resilience.BreakerState) {
		alerts.Critical(service, "circuit breaker state change",
			"from", string(from), "to", string(to))
	})
	limiter := resilience.NewRateLimiter(func(service string) resilience.LimitConfig {
		return cfg.Resilience.ForService(service).LimitConfig()
	})

	adapters, err := buildAdapters(cfg, mode, breakers, limiter, alerts, clock)
	if err != nil {
		return err
	}

	routes := make(map[string]exchange.Exchange, len(cfg.Routes))
	for asset, accountID := range cfg.Routes {
		routes[asset] = adapters[accountID]
	}
	var fallback exchange.Exchange
	if cfg.DefaultAccount != "" {
		fallback = adapters[cfg.DefaultAccount]
	}
	router := exchange.NewRouter(routes, fallback, cfg.DefaultAccount)

	timeout, _ := cfg.Sentiment.ParseTimeout() // validated at load
	source := sentiment.NewClient(cfg.Sentiment.Endpoint, timeout)
	engine := budget.NewEngine(cfg.Business.BaseBudget, source, alerts)

	business := agent.NewBusiness(agent.BusinessConfig{
		Name:   cfg.Business.Name,
		Quote:  cfg.QuoteCurrency,
		Target: cfg.Business.Targets,
		MinGap: cfg.Business.MinGap,
	}, router, engine, alerts)

	personal := agent.NewPersonal(agent.PersonalConfig{
		Name:        cfg.Personal.Name,
		Quote:       cfg.QuoteCurrency,
		DailyBudget: cfg.Personal.DailyBudget,
		Assets:      cfg.Personal.Assets,
		RangeLow:    cfg.Personal.RangeLow,
		RangeHigh:   cfg.Personal.RangeHigh,
		WindowSize:  cfg.Personal.WindowSize,
	}, router, alerts)

	log, err := openTradeLog(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	gate := func() (runner.Decision, error) {
		lines := make([]string, 0, len(cfg.Accounts))
		for _, a := range cfg.Accounts {
			lines = append(lines, fmt.Sprintf("%s (%s, %s)", a.ID, a.Exchange, a.Owner))
		}
		return runner.ConfirmLive(os.Stdin, os.Stdout, lines)
	}

	r := runner.New(
		[]agent.Agent{business, personal},
		log, alerts,
		runner.WithClock(clock),
		runner.WithInterval(runInterval),
		runner.WithGate(gate),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx, mode, runCycles); err != nil {
		if errors.Is(err, runner.ErrAborted) {
			fmt.Fprintln(os.Stderr, "aborted: live run not confirmed")
		}
		return err
	}

	for _, snap := range breakers.Snapshots() {
		alerts.Debug(snap.Service, "breaker at shutdown",
			"state", string(snap.State),
			"failures", snap.Failures,
			"successes", snap.Successes)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if runConfigPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildAdapters wraps one exchange adapter per account with the shared
// resilience layer. Breakers and limiters are keyed by exchange service
// so accounts on the same venue share state; caches stay per account.
func buildAdapters(cfg *config.Config, mode tradelog.Mode,
	breakers *resilience.BreakerSet, limiter *resilience.RateLimiter,
	alerts *resilience.AlertManager, clock resilience.Clock,
) (map[string]exchange.Exchange, error) {

	adapters := make(map[string]exchange.Exchange, len(cfg.Accounts))
	for _, acct := range cfg.Accounts {
		svc := cfg.Resilience.ForService(acct.Exchange)
		retryCfg, _ := svc.RetryConfig()    // validated at load
		size, ttl, _ := svc.CacheSettings() // validated at load

		var inner exchange.Exchange
		if mode == tradelog.Live {
			if acct.Exchange != "binance" {
				return nil, fmt.Errorf("account %s: no live adapter for exchange %q", acct.ID, acct.Exchange)
			}
			key, secret := os.Getenv(acct.APIKeyEnv), os.Getenv(acct.APISecretEnv)
			if key == "" || secret == "" {
				return nil, fmt.Errorf("account %s: %s and %s must be set for live mode",
					acct.ID, acct.APIKeyEnv, acct.APISecretEnv)
			}
			inner = exchange.NewBinance(acct.ID, cfg.QuoteCurrency, key, secret)
		} else {
			inner = exchange.NewPaper(acct.Exchange, cfg.QuoteCurrency,
				cfg.Paper.Balances[acct.ID],
				exchange.WithFeeRate(cfg.Paper.FeeRate))
		}

		g := exchange.Guard(inner, acct.ID, exchange.GuardDeps{
			Breaker: breakers.For(acct.Exchange),
			Limiter: limiter,
			Retry:   resilience.NewRetryer(retryCfg, clock),
			Cache:   resilience.NewCache(size, ttl, clock),
			Alerts:  alerts,
			Clock:   clock,
		})

		// Only simulated adapters can be seeded; live ones simply lack
		// the capability.
		if seeder, ok := g.Inner().(exchange.PriceSeeder); ok {
			for asset, price := range cfg.Paper.Prices {
				seeder.SeedPrice(asset, price)
			}
		}

		adapters[acct.ID] = g
	}
	return adapters, nil
}

func openTradeLog(cfg *config.Config) (tradelog.Log, error) {
	switch cfg.TradeLog.Type {
	case "sqlite":
		l, err := tradelog.NewSQLite(cfg.TradeLog.Path, cfg.TradeLog.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("open trade log: %w", err)
		}
		return l, nil
	default:
		l, err := tradelog.NewJSONL(cfg.TradeLog.Path, cfg.TradeLog.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("open trade log: %w", err)
		}
		return l, nil
	}
}
