package opencore

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/sandbox/process"
)

// RunnerConfig is the configuration for the opencore sandbox helper runner.
type RunnerConfig struct {
	// Binary is the helper binary name or path, defaults to opencore.
	Binary string
	// LookPath is replaceable for tests.
	LookPath func(file string) (string, error)
	Logger   log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Binary == "" {
		c.Binary = "opencore"
	}
	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.OpenCore"})
	return nil
}

// Runner runs commands through the opencore sandbox helper binary.
type Runner struct {
	binary   string
	lookPath func(file string) (string, error)
	logger   log.Logger
}

var _ sandbox.Runner = &Runner{}

// NewRunner returns a new opencore runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		binary:   cfg.Binary,
		lookPath: cfg.LookPath,
		logger:   cfg.Logger,
	}, nil
}

func (r *Runner) Name() string { return "opencore" }

// Available probes the helper in PATH, it can appear or disappear at any time.
func (r *Runner) Available(ctx context.Context) bool {
	_, err := r.lookPath(r.binary)
	return err == nil
}

func (r *Runner) Check(ctx context.Context) []model.CheckResult {
	path, err := r.lookPath(r.binary)
	if err != nil {
		return []model.CheckResult{{
			ID:      "sandbox_helper",
			Message: fmt.Sprintf("%s not found in PATH, commands will run on the host shell", r.binary),
			Status:  model.CheckStatusWarning,
		}}
	}

	return []model.CheckResult{{
		ID:      "sandbox_helper",
		Message: fmt.Sprintf("Sandbox helper available at %s", path),
		Status:  model.CheckStatusOK,
	}}
}

func (r *Runner) Run(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	r.logger.Debugf("Running in opencore sandbox: %s", req.Command)
	return process.Run(ctx, req.Dir, req.Env, r.binary, Args(req)...)
}

// Args returns the helper arguments for the request.
func Args(req sandbox.Request) []string {
	return []string{"exec", "--silent", "--sandbox", "--cwd", req.Dir, "--", req.Command}
}
