package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reelsync/reelsync/internal/database"
)

// ErrEntityNotFound is returned when an entity id does not exist.
var ErrEntityNotFound = errors.New("entity not found")

// Entities handles database operations for tracked media items.
type Entities struct {
	db *database.DB
}

// NewEntities creates a new entity store.
func NewEntities(db *database.DB) *Entities {
	return &Entities{db: db}
}

// Upsert inserts or replaces an entity.
func (s *Entities) Upsert(ctx context.Context, entity *Entity) error {
	now := time.Now().UTC()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	seasonsJSON, err := json.Marshal(entity.Seasons)
	if err != nil {
		return fmt.Errorf("marshaling seasons: %w", err)
	}

	query := `
		INSERT INTO entities (id, title, media_type, platform, cloud_backed, seasons, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			media_type = excluded.media_type,
			platform = excluded.platform,
			cloud_backed = excluded.cloud_backed,
			seasons = excluded.seasons,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		entity.ID,
		entity.Title,
		entity.MediaType,
		entity.Platform,
		boolToInt(entity.CloudBacked),
		string(seasonsJSON),
		entity.CreatedAt.Format(time.RFC3339),
		entity.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting entity: %w", err)
	}

	return nil
}

// Get retrieves an entity by id.
func (s *Entities) Get(ctx context.Context, entityID string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, entitySelect+` WHERE id = ?`, entityID)

	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("getting entity: %w", err)
	}

	return entity, nil
}

// List retrieves all entities ordered by id for deterministic output.
func (s *Entities) List(ctx context.Context) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx, entitySelect+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity rows: %w", err)
	}

	return entities, nil
}

// Delete removes an entity.
func (s *Entities) Delete(ctx context.Context, entityID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEntityNotFound
	}

	return nil
}

const entitySelect = `
	SELECT id, title, media_type, platform, cloud_backed, seasons, created_at, updated_at
	FROM entities`

func scanEntity(row rowScanner) (*Entity, error) {
	var entity Entity
	var cloudBacked int
	var seasonsJSON string
	var createdAt, updatedAt string

	err := row.Scan(
		&entity.ID,
		&entity.Title,
		&entity.MediaType,
		&entity.Platform,
		&cloudBacked,
		&seasonsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	entity.CloudBacked = cloudBacked == 1

	if err := json.Unmarshal([]byte(seasonsJSON), &entity.Seasons); err != nil {
		return nil, fmt.Errorf("unmarshaling seasons: %w", err)
	}

	var parseErr error
	if entity.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt); parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	if entity.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt); parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &entity, nil
}
