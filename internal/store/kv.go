package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reelsync/reelsync/internal/database"
)

// ErrKeyNotFound is returned when a config key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// KV is the generic key-value contract the lock manager and settings
// screens write through. A single shared table keeps it swappable for
// any store with get/set/list/delete semantics.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) (bool, error)
	ListPrefix(ctx context.Context, prefix string) (map[string]string, error)
}

// ConfigValues is the SQLite-backed KV implementation.
type ConfigValues struct {
	db *database.DB
}

// NewConfigValues creates a new config value store.
func NewConfigValues(db *database.DB) *ConfigValues {
	return &ConfigValues{db: db}
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (s *ConfigValues) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config_values WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("getting config value: %w", err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *ConfigValues) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO config_values (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, key, value, database.Now())
	if err != nil {
		return fmt.Errorf("setting config value: %w", err)
	}

	return nil
}

// Delete removes key. Returns false if the key was already gone.
func (s *ConfigValues) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM config_values WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("deleting config value: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete result: %w", err)
	}

	return n > 0, nil
}

// ListPrefix returns all key-value pairs whose key starts with prefix.
func (s *ConfigValues) ListPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM config_values WHERE key LIKE ? ORDER BY key`,
		prefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("querying config values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning config value: %w", err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config values: %w", err)
	}

	return values, nil
}
