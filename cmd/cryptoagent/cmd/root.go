package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cryptoagent",
	Short: "Autonomous crypto trading agents with a resilience layer",
	Long: `Cryptoagent runs two autonomous trading agents in discrete cycles:

  - a business agent that accumulates toward a target allocation,
    scaling its spend with the Fear & Greed index
  - a personal agent that day-trades a small fixed budget on a
    momentum/mean-reversion score

Every exchange call passes through a circuit breaker, retry with
exponential backoff, a token-bucket rate limiter, and a graceful cache.
Live mode asks for explicit confirmation before the first order.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
