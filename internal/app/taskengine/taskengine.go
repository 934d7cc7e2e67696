package taskengine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/slok/iacore/internal/app/exec"
	"github.com/slok/iacore/internal/llm"
	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/project"
	"github.com/slok/iacore/internal/storage"
)

// Task error summaries.
const (
	ErrorInterrupted         = "interrupted"
	ErrorInterruptedShutdown = "interrupted by shutdown"
)

const maxErrorLen = 200

// ServiceConfig is the configuration for the task engine.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Gateway    llm.Completer
	Executor   exec.Executor
	State      *project.State
	// PollInterval is the sleep between queue checks.
	PollInterval time.Duration
	// ErrorBackoff is the sleep after a failed loop iteration.
	ErrorBackoff time.Duration
	WorkingDir   string
	Logger       log.Logger
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Gateway == nil {
		return fmt.Errorf("gateway is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.State == nil {
		return fmt.Errorf("project state is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 10 * time.Second
	}
	if c.WorkingDir == "" {
		c.WorkingDir = c.State.Root()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskEngine"})
	return nil
}

// Service runs the pending tasks of the queue, one at a time.
type Service struct {
	repo         storage.TaskRepository
	gateway      llm.Completer
	executor     exec.Executor
	state        *project.State
	pollInterval time.Duration
	errorBackoff time.Duration
	workingDir   string
	logger       log.Logger
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	paused       atomic.Bool

	mu      sync.Mutex
	skipped map[string]bool
}

// NewService creates a new task engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:         cfg.Repository,
		gateway:      cfg.Gateway,
		executor:     cfg.Executor,
		state:        cfg.State,
		pollInterval: cfg.PollInterval,
		errorBackoff: cfg.ErrorBackoff,
		workingDir:   cfg.WorkingDir,
		logger:       cfg.Logger,
		now:          cfg.Now,
		sleep:        cfg.Sleep,
		skipped:      map[string]bool{},
	}, nil
}

// Pause stops pulling new tasks, the in-flight task is not cancelled.
func (s *Service) Pause() {
	if !s.paused.Swap(true) {
		s.logger.Infof("Task engine paused")
	}
}

// Resume resumes pulling tasks.
func (s *Service) Resume() {
	if s.paused.Swap(false) {
		s.logger.Infof("Task engine resumed")
	}
}

// Paused returns true if the engine is paused.
func (s *Service) Paused() bool { return s.paused.Load() }

// Run recovers the tasks interrupted by a previous crash and processes the
// queue until the context ends.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("could not recover interrupted tasks: %w", err)
	}

	s.logger.Infof("Task engine started")
	for {
		wait := s.pollInterval
		if !s.Paused() {
			if err := s.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				s.logger.Errorf("Error processing tasks: %s", err)
				wait = s.errorBackoff
			}
		}

		if ctx.Err() != nil {
			s.logger.Infof("Task engine stopped")
			return nil
		}

		if err := s.sleep(ctx, wait); err != nil {
			s.logger.Infof("Task engine stopped")
			return nil
		}
	}
}

// ProcessPending processes pending tasks in queue order until there are no
// more, the engine is paused or the context ends.
func (s *Service) ProcessPending(ctx context.Context) error {
	for !s.Paused() && ctx.Err() == nil {
		processed, err := s.ProcessNext(ctx)
		if err != nil {
			return err
		}
		if !processed {
			return nil
		}
	}

	return nil
}

// ProcessNext processes the first pending task, it returns false if there was none.
func (s *Service) ProcessNext(ctx context.Context) (bool, error) {
	t, err := s.nextPending(ctx)
	if err != nil {
		return false, fmt.Errorf("could not get next pending task: %w", err)
	}
	if t == nil {
		return false, nil
	}

	if _, err := s.ExecuteTask(ctx, *t); err != nil {
		return true, err
	}

	return true, nil
}

// nextPending returns the first pending task that hasn't been skipped.
func (s *Service) nextPending(ctx context.Context) (*model.Task, error) {
	s.mu.Lock()
	noSkips := len(s.skipped) == 0
	s.mu.Unlock()
	if noSkips {
		return s.repo.NextPendingTask(ctx)
	}

	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if t.Status == model.TaskStatusPending && !s.skipped[t.ID] {
			return &t, nil
		}
	}

	return nil, nil
}

// RecoverInterrupted marks as failed the tasks left running by a process that
// didn't finish them.
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not list tasks: %w", err)
	}

	recovered := 0
	for _, t := range tasks {
		if t.Status != model.TaskStatusRunning {
			continue
		}

		t.Error = ErrorInterrupted
		if err := t.Transition(model.TaskStatusFailed, s.now()); err != nil {
			return recovered, err
		}
		if err := s.repo.UpdateTask(ctx, t); err != nil {
			return recovered, fmt.Errorf("could not update task %s: %w", t.ID, err)
		}

		s.logger.Warningf("Task %s was interrupted, marked as failed", t.ID)
		recovered++
	}

	return recovered, nil
}

// ExecuteTask runs a pending task to its final state and returns it. Every
// plan step runs even after failures, an unrecovered step fails the task.
func (s *Service) ExecuteTask(ctx context.Context, t model.Task) (*model.Task, error) {
	logger := s.logger.WithValues(log.Kv{"task-id": t.ID})

	if t.Status == model.TaskStatusPending {
		if err := t.Validate(); err != nil {
			return s.rejectTask(ctx, logger, t, err)
		}
	}

	if err := t.Transition(model.TaskStatusRunning, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("could not mark task as running: %w", err)
	}
	logger.Infof("Executing task: %s", t.Description)

	analysis, _ := s.state.Analysis()
	plan := ParsePlan(s.gateway.Complete(ctx, planRequest(s.state.Type(), analysis, t)))
	if len(plan) == 0 {
		logger.Warningf("Empty plan, nothing to do")
	}

	// Commands are not cancelled by shutdown, they are bounded by their own timeout.
	execCtx := context.WithoutCancel(ctx)

	var failures []string
	interrupted := false
	for i, cmd := range plan {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		if msg, ok := s.runStep(ctx, execCtx, logger, cmd); !ok {
			failures = append(failures, fmt.Sprintf("step %d (%s): %s", i+1, cmd, msg))
		}
	}

	final := model.TaskStatusSuccess
	switch {
	case interrupted:
		final = model.TaskStatusFailed
		t.Error = ErrorInterruptedShutdown
	case len(failures) > 0:
		final = model.TaskStatusFailed
		t.Error = fmt.Sprintf("%d of %d steps failed: %s", len(failures), len(plan), strings.Join(failures, "; "))
	}

	if err := t.Transition(final, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTask(execCtx, t); err != nil {
		return nil, fmt.Errorf("could not store task result: %w", err)
	}

	if final == model.TaskStatusSuccess {
		logger.Infof("Task succeeded")
	} else {
		logger.Warningf("Task failed: %s", t.Error)
	}

	return &t, nil
}

// rejectTask fails a pending task that is not valid. When even the failed
// state can't be stored the task is skipped for the life of the engine.
func (s *Service) rejectTask(ctx context.Context, logger log.Logger, t model.Task, verr error) (*model.Task, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	t.Error = truncate("invalid task: " + verr.Error())
	if err := t.Transition(model.TaskStatusRunning, s.now()); err != nil {
		return nil, err
	}
	if err := t.Transition(model.TaskStatusFailed, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateTask(ctx, t); err != nil {
		s.mu.Lock()
		s.skipped[t.ID] = true
		s.mu.Unlock()
		logger.Errorf("Skipping invalid task, could not mark it as failed: %s", err)
		return &t, nil
	}

	logger.Warningf("Task failed: %s", t.Error)
	return &t, nil
}

// runStep runs a plan command and its fallback, it returns false with the
// failure reason when the step could not be recovered.
func (s *Service) runStep(ctx, execCtx context.Context, logger log.Logger, cmd string) (string, bool) {
	res := s.executor.Execute(execCtx, exec.Request{Command: cmd, WorkingDir: s.workingDir})
	if res.Success {
		logger.Infof("Command executed: %s", cmd)
		return "", true
	}

	errText := failureText(res)
	logger.Warningf("Command failed: %s: %s", cmd, errText)

	if ctx.Err() != nil {
		return errText, false
	}

	alt, ok := parseFallback(s.gateway.Complete(ctx, fallbackRequest(cmd, errText)))
	if !ok {
		logger.Warningf("No fallback for: %s", cmd)
		return errText + " (no fallback)", false
	}

	fres := s.executor.Execute(execCtx, exec.Request{Command: alt, WorkingDir: s.workingDir})
	if fres.Success {
		logger.Infof("Fallback executed: %s", alt)
		return "", true
	}

	fallbackErr := failureText(fres)
	logger.Warningf("Fallback failed: %s: %s", alt, fallbackErr)

	return fmt.Sprintf("%s (fallback %q: %s)", errText, alt, fallbackErr), false
}

func failureText(res model.ExecResult) string {
	text := strings.TrimSpace(res.Error)
	if text == "" {
		text = fmt.Sprintf("exit code %d", res.ExitCode)
	}
	return truncate(text)
}

// truncate cuts the text to maxErrorLen bytes on a rune boundary.
func truncate(text string) string {
	if len(text) <= maxErrorLen {
		return text
	}

	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return text[:cut] + "..."
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
