package shell

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/sandbox/process"
)

// RunnerConfig is the configuration for the host shell runner.
type RunnerConfig struct {
	// Shell is the POSIX shell binary, defaults to sh.
	Shell  string
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Shell == "" {
		c.Shell = "sh"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Shell"})
	return nil
}

// Runner runs commands with the host shell, without isolation.
type Runner struct {
	shell  string
	logger log.Logger
}

var _ sandbox.Runner = &Runner{}

// NewRunner returns a new host shell runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{shell: cfg.Shell, logger: cfg.Logger}, nil
}

func (r *Runner) Name() string { return "host" }

// Available returns true if the shell is in PATH.
func (r *Runner) Available(ctx context.Context) bool {
	_, err := exec.LookPath(r.shell)
	return err == nil
}

func (r *Runner) Check(ctx context.Context) []model.CheckResult {
	path, err := exec.LookPath(r.shell)
	if err != nil {
		return []model.CheckResult{{
			ID:      "host_shell",
			Message: fmt.Sprintf("%s not found in PATH: %v", r.shell, err),
			Status:  model.CheckStatusError,
		}}
	}

	return []model.CheckResult{{
		ID:      "host_shell",
		Message: fmt.Sprintf("Host shell available at %s", path),
		Status:  model.CheckStatusOK,
	}}
}

func (r *Runner) Run(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	r.logger.Debugf("Running on host shell: %s", req.Command)
	return process.Run(ctx, req.Dir, req.Env, r.shell, "-c", req.Command)
}
