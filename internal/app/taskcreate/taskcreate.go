package taskcreate

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage"
)

// ServiceConfig is the configuration for the task create service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
	Now        func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskCreate"})
	return nil
}

// Service appends new tasks to the queue.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
	now    func() time.Time
}

// NewService creates a new task create service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		now:    cfg.Now,
	}, nil
}

// Request represents the task create request parameters.
type Request struct {
	Description string
	AutoExecute bool
}

// Create appends a pending task at the end of the queue.
func (s *Service) Create(ctx context.Context, req Request) (*model.Task, error) {
	now := s.now().UTC()
	t := model.Task{
		ID:          strings.ToLower(ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()),
		Description: strings.TrimSpace(req.Description),
		Status:      model.TaskStatusPending,
		AutoExecute: req.AutoExecute,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("could not save task: %w", err)
	}

	s.logger.Infof("Created task: %s", t.ID)

	return &t, nil
}
