package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	logFormat  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ttlcache",
		Short:        "TTL cache with FIFO eviction and LLM response memoization",
		Long:         "Run the cache walkthrough, the load benchmark, one-shot completions, or the admin daemon",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(
		demoCmd(),
		benchCmd(),
		serveCmd(),
		completeCmd(),
	)
	return rootCmd
}
