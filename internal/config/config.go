// Package config provides configuration management for reelsync.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for reelsync.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Importer  ImporterConfig  `mapstructure:"importer"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Enable CORS
	CORS CORSConfig `mapstructure:"cors"`

	// Request timeouts
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`

	// Compress API responses
	Gzip bool `mapstructure:"gzip"`
}

// Address returns the host:port pair the server binds to.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enable CORS
	Enabled bool `mapstructure:"enabled"`

	// Allowed origins (use ["*"] for all)
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// Allow credentials
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// Max age for preflight cache
	MaxAge time.Duration `mapstructure:"max_age"`
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Enable foreign key enforcement
	ForeignKeys bool `mapstructure:"foreign_keys"`

	// Page cache size (negative = KB)
	CacheSize int `mapstructure:"cache_size"`

	// Busy timeout for locked database
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds console authentication settings.
type AuthConfig struct {
	// Enable authentication on the API
	Enabled bool `mapstructure:"enabled"`

	// Bcrypt hash of the admin password
	PasswordHash string `mapstructure:"password_hash"`

	// JWT signing secret
	JWTSecret string `mapstructure:"jwt_secret"`

	// JWT issuer claim
	JWTIssuer string `mapstructure:"jwt_issuer"`

	// Session token lifetime
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// SchedulerConfig holds task scheduling settings.
type SchedulerConfig struct {
	// Hard wall-clock limit for a single task execution
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`

	// Lifetime of a task execution lock; must exceed execution_timeout
	LockTTL time.Duration `mapstructure:"lock_ttl"`

	// How often expired locks are swept from storage
	LockSweepInterval time.Duration `mapstructure:"lock_sweep_interval"`
}

// ImporterConfig holds settings for the external import tool.
type ImporterConfig struct {
	// Base URL of the metadata-import service
	BaseURL string `mapstructure:"base_url"`

	// API token sent with import requests (optional)
	Token string `mapstructure:"token"`

	// HTTP client timeout; execution_timeout still caps the whole run
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Output format: console or json
	Format string `mapstructure:"format"`
}
