package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
)

// Response is the scripted outcome of a command.
type Response struct {
	Result sandbox.Result
	// Err is returned instead of a result, simulates spawn errors.
	Err error
	// Delay simulates a long running command, it honors the context.
	Delay time.Duration
}

// RunnerConfig is the configuration for the fake runner.
type RunnerConfig struct {
	// Responses by exact command line. Missing commands succeed without output.
	Responses   map[string]Response
	Unavailable bool
	Logger      log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Responses == nil {
		c.Responses = map[string]Response{}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Fake"})
	return nil
}

// Runner is a fake implementation of sandbox.Runner. It simulates command
// execution without running processes, it's used for dry runs and tests.
type Runner struct {
	responses   map[string]Response
	unavailable bool
	calls       []sandbox.Request
	mu          sync.Mutex
	logger      log.Logger
}

var _ sandbox.Runner = &Runner{}

// NewRunner creates a new fake runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		responses:   cfg.Responses,
		unavailable: cfg.Unavailable,
		logger:      cfg.Logger,
	}, nil
}

func (r *Runner) Name() string { return "fake" }

func (r *Runner) Available(ctx context.Context) bool { return !r.unavailable }

func (r *Runner) Check(ctx context.Context) []model.CheckResult {
	return []model.CheckResult{{
		ID:      "sandbox_helper",
		Message: "Fake runner, commands are not executed",
		Status:  model.CheckStatusWarning,
	}}
}

func (r *Runner) Run(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	resp := r.responses[req.Command]
	r.mu.Unlock()

	r.logger.Infof("(dry-run) %s", req.Command)

	if resp.Delay > 0 {
		t := time.NewTimer(resp.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return &sandbox.Result{ExitCode: model.ExitCodeNotRun}, fmt.Errorf("command interrupted: %w", ctx.Err())
		case <-t.C:
		}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}

	res := resp.Result
	return &res, nil
}

// Calls returns the requests the runner received, in order.
func (r *Runner) Calls() []sandbox.Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]sandbox.Request, len(r.calls))
	copy(calls, r.calls)
	return calls
}
