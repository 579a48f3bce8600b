package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "crossarb",
	Short: "Cross-venue event-contract arbitrage engine",
	Long: `Cross-venue arbitrage engine for binary event contracts.

The pipeline is five independent stage processes linked by Redis Streams:

  poller     discovers live markets on every venue
  matcher    pairs semantically identical cross-venue markets
  finder     sizes arbitrage opportunities from live depth
  executor   works opportunities as chunked symmetric buys
  reconciler converges order state to venue truth

Each stage is started as a subcommand and configured via environment
variables (a .env file is honored).`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
