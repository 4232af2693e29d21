// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MassKey/pkg/config"
	"github.com/ChrisMcGann/MassKey/pkg/core"
	"github.com/ChrisMcGann/MassKey/pkg/logger"
)

// defaultCustomMods is picked up from the working directory when no
// modifications.customCSV is configured.
const defaultCustomMods = "unimod_custom.csv"

var (
	configFile string
	logLevel   string
	logFormat  string

	// cfg is loaded by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "masskey",
	Short: "MassKey - spectral library conversion and search tool",
	Long: `MassKey converts spectral libraries (MSP, SPTXT) to SQLite databases
compatible with RTLS/mzVault workflows and searches query spectra against
them by precursor m/z and charge.

Precursor windows can be:
- symmetric (absolute Da or relative ppm tolerance)
- a fixed asymmetric offset interval
- a set of discrete offsets, each with its own tolerance window`,
	Version:       "3.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Logging.Format = logFormat
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which search uses for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(modsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
}

// loadModDatabase returns the built-in catalogue extended by the configured
// custom CSV, or by unimod_custom.csv in the working directory.
func loadModDatabase() (*core.ModDatabase, error) {
	modDB := core.NewDefaultModDatabase()

	path := cfg.Modifications.CustomCSV
	explicit := path != ""
	if !explicit {
		if _, err := os.Stat(defaultCustomMods); err != nil {
			return modDB, nil
		}
		path = defaultCustomMods
	}

	f, err := os.Open(path)
	if err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to open modifications CSV: %w", err)
		}
		slog.Warn("failed to open custom modifications", "path", path, "error", err)
		return modDB, nil
	}
	defer f.Close()

	before := modDB.Len()
	if err := modDB.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Info("loaded custom modifications", "path", path, "added", modDB.Len()-before)
	return modDB, nil
}
