// Package cli implements the reelsync command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reelsync/reelsync/internal/config"
)

const version = "0.1.0-dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reelsync",
	Short: "Management service for recurring metadata imports",
	Long: `Reelsync schedules recurring metadata imports and keeps concurrent
runs from stepping on each other.

It provides:

  - Daily, weekly, and cron-expression schedules per task
  - Storage-backed execution locks so independent instances sharing a
    database never run the same task twice at once
  - A REST API and WebSocket status stream for the web console

Start the server:
  reelsync serve

Create a starter config:
  reelsync init`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupDefaultLogging()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./reelsync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// setupDefaultLogging configures a console logger before the config is
// loaded; serve reconfigures from the logging section afterwards.
func setupDefaultLogging() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// applyLogging reconfigures the global logger from the config file.
// The verbose flag wins over the configured level.
func applyLogging(cfg *config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, keeping info")
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
}

// Version returns the version string.
func Version() string {
	return fmt.Sprintf("reelsync version %s", version)
}
