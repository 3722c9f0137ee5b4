// Command market-proxy serves the market dashboard API: cached CoinGecko
// market data and exchange rates.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market-proxy",
		Short: "Caching proxy for crypto market data and exchange rates",
		Long: `market-proxy fronts the CoinGecko and exchangerate-api upstreams with an
in-memory TTL cache so dashboard polling does not exhaust upstream quotas.

Quick start:
  market-proxy auth set-key            # Store a CoinGecko demo API key
  market-proxy serve --port 3000       # Start the HTTP server`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newAuthCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "market-proxy %s\n", version)
		},
	}
}
