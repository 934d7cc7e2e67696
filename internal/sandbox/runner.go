package sandbox

import (
	"context"

	"github.com/slok/iacore/internal/model"
)

// Request is a shell command line to run.
type Request struct {
	Command string
	// Dir is the host working directory.
	Dir string
	// Env is set on top of the runner environment.
	Env map[string]string
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs shell command lines, isolated or not.
type Runner interface {
	// Name identifies the runner in logs and checks.
	Name() string
	// Available returns true when the runner can run commands right now.
	Available(ctx context.Context) bool
	// Check performs preflight checks and returns the results.
	Check(ctx context.Context) []model.CheckResult
	// Run runs the command until it exits. A non zero exit is not an error. When
	// the context ends first the whole command is killed and reaped, and the
	// returned error wraps the context error.
	Run(ctx context.Context, req Request) (*Result, error)
}
