package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Show which account trades each asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		assets := make([]string, 0, len(cfg.Routes))
		for asset := range cfg.Routes {
			assets = append(assets, asset)
		}
		sort.Strings(assets)

		for _, asset := range assets {
			accountID := cfg.Routes[asset]
			acct, _ := cfg.AccountByID(accountID)
			fmt.Printf("%-8s -> %s (%s, %s)\n", asset, accountID, acct.Exchange, acct.Owner)
		}
		if cfg.DefaultAccount != "" {
			fmt.Printf("%-8s -> %s\n", "default", cfg.DefaultAccount)
		} else {
			fmt.Printf("%-8s -> none (unrouted assets fail closed)\n", "default")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
}
