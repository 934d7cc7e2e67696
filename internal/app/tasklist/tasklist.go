package tasklist

import (
	"context"
	"fmt"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage"
)

// ServiceConfig is the configuration for the task list service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists and gets tasks.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new task list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// StatusFilter is an optional filter to only show tasks with this status.
	StatusFilter *model.TaskStatus
}

// List lists the tasks in queue order, optionally filtered by status.
func (s *Service) List(ctx context.Context, req Request) ([]model.Task, error) {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	if req.StatusFilter != nil {
		filtered := make([]model.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.Status == *req.StatusFilter {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	s.logger.Debugf("found %d tasks", len(tasks))
	return tasks, nil
}

// Get returns a single task.
func (s *Service) Get(ctx context.Context, id string) (*model.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return t, nil
}
