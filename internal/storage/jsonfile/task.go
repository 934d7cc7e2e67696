package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage"
	"github.com/slok/iacore/internal/utils/file"
)

// TaskRepositoryConfig is the configuration for the JSON document task repository.
type TaskRepositoryConfig struct {
	// Path is the JSON document with the task array.
	Path string
	// LockPath is the file used to serialize writers across processes. Defaults to Path + ".lock".
	LockPath string
	Logger   log.Logger
}

func (c *TaskRepositoryConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.LockPath == "" {
		c.LockPath = c.Path + ".lock"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.jsonfile.TaskRepository"})
	return nil
}

// TaskRepository stores the task queue as a single JSON array document. Every
// mutation rewrites the whole document atomically.
type TaskRepository struct {
	path     string
	lockPath string
	mu       sync.Mutex
	logger   log.Logger
}

var _ storage.TaskRepository = &TaskRepository{}

// NewTaskRepository returns a new JSON document task repository.
func NewTaskRepository(cfg TaskRepositoryConfig) (*TaskRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TaskRepository{
		path:     cfg.Path,
		lockPath: cfg.LockPath,
		logger:   cfg.Logger,
	}, nil
}

type jsonTask struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AutoExecute bool       `json:"auto_execute"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   taskTime   `json:"created_at"`
	UpdatedAt   *taskTime  `json:"updated_at,omitempty"`
}

// taskTime is written as RFC3339 but also read from unix seconds, as a JSON
// number or a numeric string, which is how other producers write the queue.
// A missing or null value is the zero time.
type taskTime time.Time

func (t taskTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t))
}

func (t *taskTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*t = taskTime{}
		return nil
	}

	if s, err := strconv.Unquote(raw); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*t = taskTime(ts)
			return nil
		}
		raw = s
	}

	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid time %s", data)
	}
	whole := int64(secs)
	*t = taskTime(time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC())

	return nil
}

// storedTask is a record of the document. Records that can't be decoded are
// kept raw so rewrites don't lose them.
type storedTask struct {
	task jsonTask
	raw  json.RawMessage
}

func (s storedTask) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	return json.Marshal(s.task)
}

func (s storedTask) is(id string) bool {
	return s.raw == nil && s.task.ID == id
}

func mapTaskToJSON(t model.Task) jsonTask {
	jt := jsonTask{
		ID:          t.ID,
		Description: t.Description,
		Status:      string(t.Status),
		AutoExecute: t.AutoExecute,
		Error:       t.Error,
		CreatedAt:   taskTime(t.CreatedAt.UTC()),
	}
	if !t.UpdatedAt.IsZero() {
		u := taskTime(t.UpdatedAt.UTC())
		jt.UpdatedAt = &u
	}

	return jt
}

func mapJSONToTask(jt jsonTask) model.Task {
	t := model.Task{
		ID:          jt.ID,
		Description: jt.Description,
		Status:      model.TaskStatus(jt.Status),
		AutoExecute: jt.AutoExecute,
		Error:       jt.Error,
		CreatedAt:   time.Time(jt.CreatedAt),
	}
	if jt.UpdatedAt != nil {
		t.UpdatedAt = time.Time(*jt.UpdatedAt)
	}

	return t
}

// CreateTask appends a task at the end of the queue.
func (r *TaskRepository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	err := r.mutate(func(tasks []storedTask) ([]storedTask, error) {
		for _, existing := range tasks {
			if existing.is(t.ID) {
				return nil, fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
			}
		}
		return append(tasks, storedTask{task: mapTaskToJSON(t)}), nil
	})
	if err != nil {
		return err
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	tasks, err := r.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range tasks {
		if t.ID == id {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
}

// ListTasks returns all the tasks in queue order. Records that can't be
// decoded are left out.
func (r *TaskRepository) ListTasks(ctx context.Context) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.read()
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(stored))
	for _, st := range stored {
		if st.raw != nil {
			continue
		}
		tasks = append(tasks, mapJSONToTask(st.task))
	}

	return tasks, nil
}

// NextPendingTask returns the first pending task in queue order, or nil if there is none.
func (r *TaskRepository) NextPendingTask(ctx context.Context) (*model.Task, error) {
	tasks, err := r.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range tasks {
		if t.Status == model.TaskStatusPending {
			return &t, nil
		}
	}

	return nil, nil
}

// UpdateTask replaces the stored state of a task, the queue position is kept.
func (r *TaskRepository) UpdateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	err := r.mutate(func(tasks []storedTask) ([]storedTask, error) {
		for i, existing := range tasks {
			if existing.is(t.ID) {
				tasks[i] = storedTask{task: mapTaskToJSON(t)}
				return tasks, nil
			}
		}
		return nil, fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	})
	if err != nil {
		return err
	}

	r.logger.Debugf("Updated task %s to %s", t.ID, t.Status)
	return nil
}

// mutate runs a read-modify-write cycle of the document holding the process
// and the cross-process locks.
func (r *TaskRepository) mutate(f func(tasks []storedTask) ([]storedTask, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := file.Lock(r.lockPath)
	switch {
	case errors.Is(err, file.ErrLockUnsupported):
		unlock = func() error { return nil }
	case err != nil:
		return fmt.Errorf("could not lock task store: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			r.logger.Warningf("could not unlock task store: %s", err)
		}
	}()

	tasks, err := r.read()
	if err != nil {
		return err
	}

	tasks, err = f(tasks)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal tasks: %w", err)
	}

	if err := file.WriteAtomic(r.path, data, 0o644); err != nil {
		return fmt.Errorf("could not write task store: %w", err)
	}

	return nil
}

// read decodes the document record by record, only a document that isn't a
// JSON array is an error.
func (r *TaskRepository) read() ([]storedTask, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []storedTask{}, nil
		}
		return nil, fmt.Errorf("could not read task store: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return []storedTask{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("could not parse task store %s: %w", r.path, err)
	}

	tasks := make([]storedTask, 0, len(records))
	for i, rec := range records {
		var jt jsonTask
		if err := json.Unmarshal(rec, &jt); err != nil {
			r.logger.Warningf("Ignoring task store record %d: %s", i, err)
			tasks = append(tasks, storedTask{raw: rec})
			continue
		}
		tasks = append(tasks, storedTask{task: jt})
	}

	return tasks, nil
}
