package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a starter reelsync.yaml",
	Long: `Create a starter configuration file.

Writes reelsync.yaml with the default settings spelled out, ready to
edit. Secrets reference environment variables rather than being stored
in the file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")

	rootCmd.AddCommand(initCmd)
}

// starterConfig mirrors the config structure with yaml tags so the
// generated file uses the same keys the loader reads.
type starterConfig struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Gzip bool   `yaml:"gzip"`
		CORS struct {
			Enabled        bool     `yaml:"enabled"`
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		Enabled      bool   `yaml:"enabled"`
		PasswordHash string `yaml:"password_hash"`
		JWTSecret    string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Scheduler struct {
		ExecutionTimeout string `yaml:"execution_timeout"`
		LockTTL          string `yaml:"lock_ttl"`
	} `yaml:"scheduler"`
	Importer struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"importer"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating project directory: %w", err)
		}
	}

	path := filepath.Join(dir, "reelsync.yaml")
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	var cfg starterConfig
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8390
	cfg.Server.Gzip = true
	cfg.Server.CORS.Enabled = true
	cfg.Server.CORS.AllowedOrigins = []string{"*"}
	cfg.Database.Path = "reelsync.db"
	cfg.Auth.Enabled = false
	cfg.Auth.PasswordHash = ""
	cfg.Auth.JWTSecret = "${REELSYNC_JWT_SECRET}"
	cfg.Scheduler.ExecutionTimeout = "3m"
	cfg.Scheduler.LockTTL = "5m"
	cfg.Importer.BaseURL = "http://127.0.0.1:8080"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshaling starter config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	log.Info().Str("file", path).Msg("Config file created")
	fmt.Println("Created", path)
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the config, then enable auth with 'reelsync hashpw' if desired")
	fmt.Println("  2. Start the server with 'reelsync serve'")

	return nil
}
