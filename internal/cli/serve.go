package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reelsync/reelsync/internal/config"
	"github.com/reelsync/reelsync/internal/database"
	"github.com/reelsync/reelsync/internal/server"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reelsync server",
	Long: `Start the reelsync server.

The server will:
  - Open (and migrate) the SQLite database
  - Sweep stale execution locks left by a previous run
  - Arm a timer for every enabled task
  - Serve the management API and WebSocket status stream

Log level changes in the config file are picked up without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	applyLogging(&cfg.Logging)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer db.Close()

	srv := server.New(cfg, db, server.WithVersion(version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Shutdown did not complete cleanly")
		}
	}()

	if path := configFileInUse(); path != "" {
		watcher, watchErr := newConfigWatcher(path, func() {
			reloadLogging(path)
		})
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("Failed to watch config file, continuing without live reload")
		} else {
			watcher.Start(ctx)
			defer func() { _ = watcher.Stop() }()
			log.Debug().Str("file", path).Msg("Watching config file")
		}
	}

	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
		return err
	}

	<-ctx.Done()
	return nil
}

// configFileInUse returns the config path to watch, or empty when the
// server is running purely on defaults and environment.
func configFileInUse() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat("reelsync.yaml"); err == nil {
		return "reelsync.yaml"
	}
	return ""
}

// reloadLogging re-reads the config file and applies the logging
// section. Other sections need a restart, so only logging is touched.
func reloadLogging(path string) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring config change, file does not validate")
		return
	}

	applyLogging(&cfg.Logging)
	log.Info().
		Str("level", cfg.Logging.Level).
		Str("format", cfg.Logging.Format).
		Msg("Logging reconfigured")
}
