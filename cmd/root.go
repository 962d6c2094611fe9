// Package cmd is the poimap command line: the HTTP server plus offline
// maintenance commands that share its configuration.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poimap-server/config"
	"poimap-server/logger"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "poimap",
	Short:         "Curated points of interest for the browser map",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.Environment, cfg.LogLevel, verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}
