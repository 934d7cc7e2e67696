package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage"
	"github.com/slok/iacore/internal/utils/file"
)

// CacheRepositoryConfig is the configuration for the JSON file cache repository.
type CacheRepositoryConfig struct {
	Dir    string
	Logger log.Logger
}

func (c *CacheRepositoryConfig) defaults() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.jsonfile.CacheRepository"})
	return nil
}

// CacheRepository stores each response cache entry as a JSON file named after its key.
type CacheRepository struct {
	dir    string
	logger log.Logger
}

var _ storage.CacheRepository = &CacheRepository{}

// NewCacheRepository returns a new JSON file cache repository.
func NewCacheRepository(cfg CacheRepositoryConfig) (*CacheRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &CacheRepository{
		dir:    cfg.Dir,
		logger: cfg.Logger,
	}, nil
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type jsonCacheEntry struct {
	Key       string    `json:"key"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// GetCacheEntry returns the cached response for the key.
func (r *CacheRepository) GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	if !validKey.MatchString(key) {
		return nil, fmt.Errorf("invalid cache key %q: %w", key, model.ErrNotValid)
	}

	data, err := os.ReadFile(r.entryPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cache entry %s: %w", key, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not read cache entry: %w", err)
	}

	var je jsonCacheEntry
	if err := json.Unmarshal(data, &je); err != nil {
		return nil, fmt.Errorf("could not parse cache entry %s: %w", key, err)
	}

	return &model.CacheEntry{
		Key:       key,
		Prompt:    je.Prompt,
		Response:  je.Response,
		Model:     je.Model,
		CreatedAt: je.CreatedAt,
	}, nil
}

// SetCacheEntry stores the entry, replacing any previous one with the same key.
func (r *CacheRepository) SetCacheEntry(ctx context.Context, e model.CacheEntry) error {
	if !validKey.MatchString(e.Key) {
		return fmt.Errorf("invalid cache key %q: %w", e.Key, model.ErrNotValid)
	}

	data, err := json.MarshalIndent(jsonCacheEntry{
		Key:       e.Key,
		Prompt:    e.Prompt,
		Response:  e.Response,
		Model:     e.Model,
		CreatedAt: e.CreatedAt.UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal cache entry: %w", err)
	}

	if err := file.WriteAtomic(r.entryPath(e.Key), data, 0o600); err != nil {
		return fmt.Errorf("could not write cache entry: %w", err)
	}

	r.logger.Debugf("Stored cache entry: %s", e.Key)
	return nil
}

func (r *CacheRepository) entryPath(key string) string {
	return filepath.Join(r.dir, key+".json")
}
