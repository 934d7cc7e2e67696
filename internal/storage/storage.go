package storage

import (
	"context"

	"github.com/slok/iacore/internal/model"
)

// TaskRepository is the interface for the ordered task queue persistence.
type TaskRepository interface {
	// CreateTask appends a task at the end of the queue.
	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// ListTasks returns all the tasks in queue order.
	ListTasks(ctx context.Context) ([]model.Task, error)
	// NextPendingTask returns the first pending task in queue order, or nil if there is none.
	NextPendingTask(ctx context.Context) (*model.Task, error)
	UpdateTask(ctx context.Context, t model.Task) error
}

// CacheRepository is the interface for the language model response cache persistence.
type CacheRepository interface {
	// GetCacheEntry returns model.ErrNotFound if the key is missing.
	GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error)
	SetCacheEntry(ctx context.Context, e model.CacheEntry) error
}
