package config

import "time"

// Default configuration values.
const (
	// Server defaults.
	DefaultHost         = "localhost"
	DefaultPort         = 8390
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
	DefaultMaxBodySize  = 1 * 1024 * 1024 // 1MB

	// Database defaults.
	DefaultDBPath       = "reelsync.db"
	DefaultCacheSize    = -64000 // 64MB
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer
	DefaultMaxIdleConns = 1

	// Auth defaults.
	DefaultJWTIssuer = "reelsync"
	DefaultTokenTTL  = 12 * time.Hour

	// Scheduler defaults.
	DefaultExecutionTimeout  = 3 * time.Minute
	DefaultLockTTL           = 5 * time.Minute
	DefaultLockSweepInterval = 10 * time.Minute

	// Importer defaults.
	DefaultImporterBaseURL = "http://localhost:8391"
	DefaultRequestTimeout  = 30 * time.Second

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
			Gzip:         true,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				MaxAge:         10 * time.Minute,
			},
		},
		Database: DatabaseConfig{
			Path:         DefaultDBPath,
			WALMode:      true,
			ForeignKeys:  true,
			CacheSize:    DefaultCacheSize,
			BusyTimeout:  DefaultBusyTimeout,
			MaxOpenConns: DefaultMaxOpenConns,
			MaxIdleConns: DefaultMaxIdleConns,
		},
		Auth: AuthConfig{
			Enabled:   false,
			JWTIssuer: DefaultJWTIssuer,
			TokenTTL:  DefaultTokenTTL,
		},
		Scheduler: SchedulerConfig{
			ExecutionTimeout:  DefaultExecutionTimeout,
			LockTTL:           DefaultLockTTL,
			LockSweepInterval: DefaultLockSweepInterval,
		},
		Importer: ImporterConfig{
			BaseURL:        DefaultImporterBaseURL,
			RequestTimeout: DefaultRequestTimeout,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
