package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of the task queue and the response cache.
type Repository struct {
	tasks  []model.Task
	cache  map[string]model.CacheEntry
	mu     sync.RWMutex
	logger log.Logger
}

var (
	_ storage.TaskRepository  = &Repository{}
	_ storage.CacheRepository = &Repository{}
)

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		cache:  make(map[string]model.CacheEntry),
		logger: cfg.Logger,
	}, nil
}

// CreateTask appends a task at the end of the queue.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(t.ID) >= 0 {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
	}

	r.tasks = append(r.tasks, t)
	r.logger.Debugf("Created task in repository: %s", t.ID)

	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	t := r.tasks[i]
	return &t, nil
}

// ListTasks returns all the tasks in queue order.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, len(r.tasks))
	copy(tasks, r.tasks)

	return tasks, nil
}

// NextPendingTask returns the first pending task in queue order, or nil if there is none.
func (r *Repository) NextPendingTask(ctx context.Context) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tasks {
		if t.Status == model.TaskStatusPending {
			return &t, nil
		}
	}

	return nil, nil
}

// UpdateTask replaces the stored state of a task.
func (r *Repository) UpdateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(t.ID)
	if i < 0 {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.tasks[i] = t
	r.logger.Debugf("Updated task %s to %s", t.ID, t.Status)

	return nil
}

func (r *Repository) indexOf(id string) int {
	for i, t := range r.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// GetCacheEntry returns the cached response for the key.
func (r *Repository) GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.cache[key]
	if !ok {
		return nil, fmt.Errorf("cache entry %s: %w", key, model.ErrNotFound)
	}

	return &e, nil
}

// SetCacheEntry stores the entry, replacing any previous one with the same key.
func (r *Repository) SetCacheEntry(ctx context.Context, e model.CacheEntry) error {
	if e.Key == "" {
		return fmt.Errorf("cache key is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache[e.Key] = e

	return nil
}
