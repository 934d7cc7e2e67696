package shell_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/sandbox/shell"
)

func TestRunnerRun(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	require.NoError(os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))

	r, err := shell.NewRunner(shell.RunnerConfig{})
	require.NoError(err)

	assert.True(r.Available(context.Background()))
	res, err := r.Run(context.Background(), sandbox.Request{Command: "ls", Dir: dir})
	require.NoError(err)
	assert.Equal(0, res.ExitCode)
	assert.Contains(res.Stdout, "marker.txt")
}

func TestRunnerCheck(t *testing.T) {
	tests := map[string]struct {
		shell     string
		expStatus model.CheckStatus
	}{
		"An existing shell should be ok.":  {shell: "sh", expStatus: model.CheckStatusOK},
		"A missing shell should be error.": {shell: "iacore-missing-shell", expStatus: model.CheckStatusError},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := shell.NewRunner(shell.RunnerConfig{Shell: test.shell})
			require.NoError(t, err)

			res := r.Check(context.Background())
			require.Len(t, res, 1)
			assert.Equal(t, "host_shell", res[0].ID)
			assert.Equal(t, test.expStatus, res[0].Status)
		})
	}
}
