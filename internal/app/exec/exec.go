package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/security"
	"github.com/slok/iacore/internal/utils/env"
)

// DefaultTimeout is the command timeout used when none is configured.
const DefaultTimeout = 300 * time.Second

// Executor runs shell commands and normalizes their results, it never returns errors.
type Executor interface {
	Execute(ctx context.Context, req Request) model.ExecResult
	ExecuteBatch(ctx context.Context, reqs []Request, stopOnError bool) []model.ExecResult
}

// ServiceConfig is the configuration for the exec service.
type ServiceConfig struct {
	// Sandbox is the isolated runner, optional. It's probed on every execution.
	Sandbox sandbox.Runner
	// Host is the runner used when the sandbox is not available.
	Host    sandbox.Runner
	Filter  *security.Filter
	Timeout time.Duration
	// WorkingDir is used for requests without one.
	WorkingDir string
	// Env is set on every command, request env vars take precedence.
	Env    map[string]string
	Logger log.Logger
	Now    func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Host == nil {
		return fmt.Errorf("host runner is required")
	}
	if c.Filter == nil {
		f, err := security.NewFilter(nil)
		if err != nil {
			return fmt.Errorf("could not create default safety filter: %w", err)
		}
		c.Filter = f
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.WorkingDir == "" {
		c.WorkingDir = "."
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Exec"})
	return nil
}

// Service executes shell commands through the sandbox or the host shell.
type Service struct {
	sandbox    sandbox.Runner
	host       sandbox.Runner
	filter     *security.Filter
	timeout    time.Duration
	workingDir string
	env        map[string]string
	logger     log.Logger
	now        func() time.Time
}

var _ Executor = &Service{}

// NewService creates a new exec service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		sandbox:    cfg.Sandbox,
		host:       cfg.Host,
		filter:     cfg.Filter,
		timeout:    cfg.Timeout,
		workingDir: cfg.WorkingDir,
		env:        cfg.Env,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}, nil
}

// Request contains the parameters for executing a command.
type Request struct {
	Command    string
	WorkingDir string
	// Timeout overrides the service timeout when set.
	Timeout time.Duration
	Env     map[string]string
}

// Execute runs a single command.
func (s *Service) Execute(ctx context.Context, req Request) model.ExecResult {
	logger := s.logger.WithCtxValues(ctx)

	if reason, ok := s.filter.Check(req.Command); !ok {
		logger.Warningf("Blocked command %q: %s", req.Command, reason)
		return model.ExecResult{
			ExitCode: model.ExitCodeNotRun,
			Blocked:  true,
			Error:    fmt.Sprintf("command blocked by safety filter: %s", reason),
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	dir := req.WorkingDir
	if dir == "" {
		dir = s.workingDir
	}

	runner := s.runner(ctx)
	runReq := sandbox.Request{Command: req.Command, Dir: dir, Env: mergeEnv(s.env, req.Env)}

	start := s.now()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Debugf("Executing with %s runner: %s", runner.Name(), req.Command)
	res, err := runner.Run(runCtx, runReq)
	duration := s.now().Sub(start)

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		logger.Warningf("Command timed out after %s: %s", timeout, req.Command)
		return model.ExecResult{
			ExitCode: model.ExitCodeNotRun,
			TimedOut: true,
			Error:    fmt.Sprintf("command timed out after %s", timeout),
			Duration: duration,
		}
	case err != nil:
		logger.Errorf("Could not execute command %q: %s", req.Command, err)
		return model.ExecResult{
			ExitCode: model.ExitCodeNotRun,
			Error:    err.Error(),
			Duration: duration,
		}
	}

	return model.ExecResult{
		Success:  res.ExitCode == 0,
		Output:   res.Stdout,
		Error:    res.Stderr,
		ExitCode: res.ExitCode,
		Duration: duration,
	}
}

// ExecuteBatch runs the commands in order. With stopOnError the first failed
// command is the last one run and reported.
func (s *Service) ExecuteBatch(ctx context.Context, reqs []Request, stopOnError bool) []model.ExecResult {
	results := make([]model.ExecResult, 0, len(reqs))
	for _, req := range reqs {
		res := s.Execute(ctx, req)
		results = append(results, res)
		if stopOnError && !res.Success {
			break
		}
	}

	return results
}

// Check returns the host shell and sandbox helper preflight checks.
func (s *Service) Check(ctx context.Context) []model.CheckResult {
	checks := s.host.Check(ctx)
	if s.sandbox == nil {
		return append(checks, model.CheckResult{
			ID:      "sandbox_helper",
			Message: "Sandbox disabled, commands run on the host shell",
			Status:  model.CheckStatusWarning,
		})
	}

	return append(checks, s.sandbox.Check(ctx)...)
}

func (s *Service) runner(ctx context.Context) sandbox.Runner {
	if s.sandbox != nil && s.sandbox.Available(ctx) {
		return s.sandbox
	}
	if s.sandbox != nil {
		s.logger.Debugf("Sandbox %s not available, using host shell", s.sandbox.Name())
	}
	return s.host
}

func mergeEnv(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	return env.MergeMaps(base, override)
}
