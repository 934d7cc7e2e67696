package opencore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/sandbox/opencore"
)

func TestArgs(t *testing.T) {
	got := opencore.Args(sandbox.Request{Command: "ls -la", Dir: "/srv/app"})
	assert.Equal(t, []string{"exec", "--silent", "--sandbox", "--cwd", "/srv/app", "--", "ls -la"}, got)
}

func TestRunnerRunsHelper(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// A helper that prints the arguments it receives.
	dir := t.TempDir()
	helper := filepath.Join(dir, "opencore")
	require.NoError(os.WriteFile(helper, []byte("#!/bin/sh\nprintf '%s|' \"$@\"\n"), 0o755))

	r, err := opencore.NewRunner(opencore.RunnerConfig{Binary: helper})
	require.NoError(err)
	require.True(r.Available(context.Background()))

	res, err := r.Run(context.Background(), sandbox.Request{Command: "echo hi", Dir: dir})
	require.NoError(err)
	assert.Equal(0, res.ExitCode)
	assert.Equal("exec|--silent|--sandbox|--cwd|"+dir+"|--|echo hi|", res.Stdout)
}

func TestRunnerAvailability(t *testing.T) {
	tests := map[string]struct {
		lookPath     func(string) (string, error)
		expAvailable bool
		expStatus    model.CheckStatus
	}{
		"A helper in PATH should be available.": {
			lookPath:     func(string) (string, error) { return "/usr/bin/opencore", nil },
			expAvailable: true,
			expStatus:    model.CheckStatusOK,
		},

		"A missing helper should not be available and warn.": {
			lookPath:  func(string) (string, error) { return "", errors.New("not found") },
			expStatus: model.CheckStatusWarning,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			r, err := opencore.NewRunner(opencore.RunnerConfig{LookPath: test.lookPath})
			require.NoError(t, err)

			assert.Equal(test.expAvailable, r.Available(context.Background()))
			res := r.Check(context.Background())
			require.Len(t, res, 1)
			assert.Equal("sandbox_helper", res[0].ID)
			assert.Equal(test.expStatus, res[0].Status)
		})
	}
}
