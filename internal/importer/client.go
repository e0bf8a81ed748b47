// Package importer is the HTTP client for the metadata-import service.
// All TMDB-specific import work lives on the other side of this call.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/reelsync/reelsync/internal/config"
	"github.com/reelsync/reelsync/internal/runner"
	"github.com/reelsync/reelsync/internal/store"
)

// Client calls the import service's REST endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an import client from configuration.
func NewClient(cfg *config.ImporterConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

type importRequest struct {
	TaskID       string `json:"task_id"`
	TargetID     string `json:"target_id"`
	TargetTitle  string `json:"target_title"`
	SeasonNumber int    `json:"season_number,omitempty"`
	CloudSync    bool   `json:"cloud_sync,omitempty"`
	AutoConfirm  bool   `json:"auto_confirm,omitempty"`
	ConflictMode string `json:"conflict_mode,omitempty"`
}

// PerformImport triggers one import run and waits for its result.
func (c *Client) PerformImport(ctx context.Context, task *store.ScheduledTask, target *store.Entity) (*runner.ImportResult, error) {
	payload := importRequest{
		TaskID:       task.ID,
		TargetID:     target.ID,
		TargetTitle:  target.Title,
		SeasonNumber: task.Action.SeasonNumber,
		CloudSync:    task.Action.CloudSync,
		AutoConfirm:  task.Action.AutoConfirm,
		ConflictMode: task.Action.ConflictMode,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling import request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/import", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building import request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Preserve deadline errors so the runner classifies them as timeouts.
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("calling import service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", runner.ErrTargetNotFound, target.ID)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading import response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("import service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result runner.ImportResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshaling import result: %w", err)
	}

	return &result, nil
}
