package iacore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/iacore/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
	// Docker enables the tests that run commands in docker sandboxes.
	Docker bool
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		return fmt.Errorf("iacore binary path is required (IACORE_INTEGRATION_BINARY)")
	}

	// go test changes the CWD to the test package directory.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("IACORE_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("iacore binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "IACORE_INTEGRATION"
		envBinary     = "IACORE_INTEGRATION_BINARY"
		envDocker     = "IACORE_INTEGRATION_DOCKER"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary: os.Getenv(envBinary),
		Docker: os.Getenv(envDocker) == "true",
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// NewProject creates a project directory with the config document.
func NewProject(t *testing.T, configYAML string) string {
	t.Helper()

	root := t.TempDir()
	if configYAML == "" {
		return root
	}

	dir := filepath.Join(root, ".iacore")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("could not create config dir: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(configYAML), 0o644); err != nil {
		t.Fatalf("could not write config: %s", err)
	}

	return root
}

// RunIACoreCmd runs an iacore command on a project without logs.
func RunIACoreCmd(ctx context.Context, config Config, projectDir string, args ...string) (stdout, stderr []byte, err error) {
	args = append([]string{"--project", projectDir}, args...)
	return testutils.RunIACoreArgs(ctx, nil, config.Binary, args, true)
}

// RunExec executes a command through the executor.
func RunExec(ctx context.Context, config Config, projectDir string, flags []string, command ...string) (stdout, stderr []byte, err error) {
	args := append([]string{"exec", "--format", "json"}, flags...)
	args = append(args, "--")
	args = append(args, command...)
	return RunIACoreCmd(ctx, config, projectDir, args...)
}
