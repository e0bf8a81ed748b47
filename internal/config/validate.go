package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}
	if cfg.MaxBodySize < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.max_body_size",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "database.path",
			Message: "must not be empty",
		})
	}
	if cfg.MaxOpenConns < 1 {
		errs = append(errs, ValidationError{
			Field:   "database.max_open_conns",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateAuth(cfg *AuthConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Enabled {
		if cfg.PasswordHash == "" {
			errs = append(errs, ValidationError{
				Field:   "auth.password_hash",
				Message: "required when auth is enabled",
			})
		}
		if cfg.JWTSecret == "" {
			errs = append(errs, ValidationError{
				Field:   "auth.jwt_secret",
				Message: "required when auth is enabled",
			})
		}
		if cfg.TokenTTL <= 0 {
			errs = append(errs, ValidationError{
				Field:   "auth.token_ttl",
				Message: "must be positive",
			})
		}
	}

	return errs
}

func validateScheduler(cfg *SchedulerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.ExecutionTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.execution_timeout",
			Message: "must be positive",
		})
	}
	if cfg.LockTTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.lock_ttl",
			Message: "must be positive",
		})
	}
	// A lock that can expire mid-execution would let a second context
	// start the same task while the first is still running.
	if cfg.LockTTL <= cfg.ExecutionTimeout {
		errs = append(errs, ValidationError{
			Field:   "scheduler.lock_ttl",
			Message: "must be greater than scheduler.execution_timeout",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: trace, debug, info, warn, error",
		})
	}

	switch cfg.Format {
	case "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be console or json",
		})
	}

	return errs
}
