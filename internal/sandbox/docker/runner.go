package docker

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/slok/iacore/internal/conventions"
	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/utils/env"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// RunnerConfig is the configuration for the Docker runner.
type RunnerConfig struct {
	Client DockerClient
	// Image is the throwaway container image.
	Image string
	// Shell is the POSIX shell inside the image, defaults to sh.
	Shell  string
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Image == "" {
		return fmt.Errorf("image is required")
	}
	if c.Shell == "" {
		c.Shell = "sh"
	}
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Docker"})
	return nil
}

// Runner runs every command in a throwaway container with the working
// directory bind mounted.
type Runner struct {
	client DockerClient
	image  string
	shell  string
	logger log.Logger
}

var _ sandbox.Runner = &Runner{}

// NewRunner creates a new Docker runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		client: cfg.Client,
		image:  cfg.Image,
		shell:  cfg.Shell,
		logger: cfg.Logger,
	}, nil
}

func (r *Runner) Name() string { return "docker" }

// Available pings the daemon.
func (r *Runner) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.client.Ping(ctx)
	return err == nil
}

func (r *Runner) Check(ctx context.Context) []model.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ping, err := r.client.Ping(ctx)
	if err != nil {
		return []model.CheckResult{{
			ID:      "sandbox_helper",
			Message: fmt.Sprintf("Docker daemon not reachable, commands will run on the host shell: %v", err),
			Status:  model.CheckStatusWarning,
		}}
	}

	return []model.CheckResult{{
		ID:      "sandbox_helper",
		Message: fmt.Sprintf("Docker daemon reachable (API %s), image %s", ping.APIVersion, r.image),
		Status:  model.CheckStatusOK,
	}}
}

func (r *Runner) Run(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	dir, err := filepath.Abs(req.Dir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve working directory: %w", err)
	}

	name := "iacore-" + strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
	cfg := &container.Config{
		Image:      r.image,
		Cmd:        []string{r.shell, "-c", req.Command},
		WorkingDir: conventions.SandboxWorkdir,
		Env:        env.List(req.Env),
		Labels:     map[string]string{"io.iacore.managed": "true"},
	}
	hostCfg := &container.HostConfig{
		Binds: []string{dir + ":" + conventions.SandboxWorkdir},
	}

	id, err := r.create(ctx, cfg, hostCfg, name)
	if err != nil {
		return nil, err
	}

	// Removal must happen even when the run context is done, it also kills a running container.
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := r.client.ContainerRemove(rmCtx, id, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Warningf("could not remove container %s: %s", name, err)
		}
	}()

	r.logger.Debugf("Running in container %s: %s", name, req.Command)

	waitC, errC := r.client.ContainerWait(ctx, id, container.WaitConditionNextExit)
	if err := r.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("could not start container: %w", err)
	}

	var exitCode int
	select {
	case <-ctx.Done():
		return &sandbox.Result{ExitCode: model.ExitCodeNotRun}, fmt.Errorf("command interrupted: %w", ctx.Err())
	case err := <-errC:
		if ctx.Err() != nil {
			return &sandbox.Result{ExitCode: model.ExitCodeNotRun}, fmt.Errorf("command interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("could not wait for container: %w", err)
	case resp := <-waitC:
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, fmt.Errorf("container wait failed: %s", resp.Error.Message)
		}
		exitCode = int(resp.StatusCode)
	}

	logs, err := r.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("could not get container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("could not read container logs: %w", err)
	}

	return &sandbox.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}

// create creates the container pulling the image when it's missing.
func (r *Runner) create(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, name string) (string, error) {
	resp, err := r.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err == nil {
		return resp.ID, nil
	}
	if !client.IsErrNotFound(err) {
		return "", fmt.Errorf("could not create container: %w", err)
	}

	r.logger.Infof("Pulling image: %s", r.image)
	pull, err := r.client.ImagePull(ctx, r.image, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("could not pull image %s: %w", r.image, err)
	}
	// Consume the pull response to ensure it completes.
	_, _ = io.Copy(io.Discard, pull)
	pull.Close()

	resp, err = r.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("could not create container: %w", err)
	}

	return resp.ID, nil
}
