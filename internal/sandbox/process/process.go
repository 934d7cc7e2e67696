// Package process runs host processes in their own process group so a
// cancellation kills everything they spawned.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/utils/env"
)

// waitDelay bounds how long we wait for the output pipes after a kill.
const waitDelay = 5 * time.Second

// Run runs the binary with args in dir, vars are added to the current environment.
func Run(ctx context.Context, dir string, vars map[string]string, name string, args ...string) (*sandbox.Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(vars) > 0 {
		cmd.Env = append(os.Environ(), env.List(vars)...)
	}
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &sandbox.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() != nil {
		res.ExitCode = model.ExitCodeNotRun
		return res, fmt.Errorf("command interrupted: %w", ctx.Err())
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("could not start command: %w", err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	return res, nil
}
