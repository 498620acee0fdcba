package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zenogate",
	Short: "Zenogate - edge gateway for blockchain RPC providers",
	Long: `Zenogate is an edge gateway that terminates TLS for a public domain and
routes inbound requests to upstream blockchain RPC and indexer providers,
injecting server-side credentials so clients never handle API keys.

It provides:
  - Automated certificate issuance and renewal via ACME HTTP-01
  - Per-client-IP rate limiting
  - A periodically refreshed exchange-rate endpoint
  - Prometheus metrics and health probes`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
