// Package main implements the romgen CLI: it builds reduced-order
// Rayleigh–Bénard models and writes them as MATLAB right-hand-side
// functions.
package main

import (
	"fmt"
	"os"

	"romgen/internal/config"
	"romgen/internal/logging"
	"romgen/internal/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded by PersistentPreRunE
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "romgen",
	Short: "romgen - reduced-order model generator for Rayleigh–Bénard convection",
	Long: `romgen builds truncated Galerkin models of 2D Rayleigh–Bénard convection.

A run resolves a set of streamfunction and temperature modes, asks the
symbolic deriver for the right-hand side of every mode, optionally checks
that the dissipation-free system conserves its invariants, and writes the
system as a MATLAB function hk<N>_rhs(x,a,s,k,R).

Modes come either from the hierarchy (model 1 is the Lorenz system) or from
explicit --psi and --theta lists.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return &pipeline.ConfigError{Option: "config", Value: configPath, Err: err}
		}
		if err := loaded.Validate(); err != nil {
			return &pipeline.ConfigError{Option: "config", Value: configPath, Err: err}
		}
		cfg = loaded

		logCfg := logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		}
		if verbose {
			logCfg.Level = "debug"
		}
		if err := logging.Init(logCfg); err != nil {
			return &pipeline.ConfigError{Option: "logging", Err: err}
		}
		logger = logging.Get(logging.CategoryBoot)
		logger.Debug("config loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "Path to the config file")

	// Malformed flags are configuration errors, not run failures.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &pipeline.ConfigError{Option: "flags", Err: err}
	})

	rootCmd.AddCommand(
		generateCmd,
		batchCmd,
		watchCmd,
		modesCmd,
		configCmd,
		historyCmd,
		cacheCmd,
	)
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(pipeline.ExitCode(err))
}
