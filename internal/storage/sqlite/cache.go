package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/slok/iacore/internal/model"
)

// GetCacheEntry returns the cached response for the key.
func (r *Repository) GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	query := `SELECT key, prompt, response, model, created_at FROM llm_cache WHERE key = ?`

	var e model.CacheEntry
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, key).Scan(&e.Key, &e.Prompt, &e.Response, &e.Model, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cache entry %s: %w", key, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query cache entry: %w", err)
	}
	e.CreatedAt = fromUnix(createdAt)

	return &e, nil
}

// SetCacheEntry stores the entry, replacing any previous one with the same key.
func (r *Repository) SetCacheEntry(ctx context.Context, e model.CacheEntry) error {
	if e.Key == "" {
		return fmt.Errorf("cache key is required: %w", model.ErrNotValid)
	}

	query := `
		INSERT INTO llm_cache (key, prompt, response, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			prompt = excluded.prompt,
			response = excluded.response,
			model = excluded.model,
			created_at = excluded.created_at
	`
	if _, err := r.db.ExecContext(ctx, query, e.Key, e.Prompt, e.Response, e.Model, toUnix(e.CreatedAt)); err != nil {
		return fmt.Errorf("could not store cache entry: %w", err)
	}

	r.logger.Debugf("Stored cache entry: %s", e.Key)
	return nil
}
