package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/iacore/internal/app/exec"
	"github.com/slok/iacore/internal/conventions"
	"github.com/slok/iacore/internal/llm"
	"github.com/slok/iacore/internal/llm/provider"
	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/sandbox"
	"github.com/slok/iacore/internal/sandbox/docker"
	"github.com/slok/iacore/internal/sandbox/fake"
	"github.com/slok/iacore/internal/sandbox/opencore"
	"github.com/slok/iacore/internal/sandbox/shell"
	"github.com/slok/iacore/internal/storage"
	"github.com/slok/iacore/internal/storage/jsonfile"
	"github.com/slok/iacore/internal/storage/sqlite"
	"github.com/slok/iacore/internal/utils/env"
)

// repositories are the storage dependencies of the agent.
type repositories struct {
	Tasks storage.TaskRepository
	Cache storage.CacheRepository
	Close func() error
}

func newRepositories(cfg model.Config, projectRoot string, logger log.Logger) (*repositories, error) {
	switch cfg.Storage.Backend {
	case model.StorageBackendSQLite:
		repo, err := sqlite.NewRepository(sqlite.RepositoryConfig{
			DBPath: conventions.RuntimePath(projectRoot, conventions.DBFile),
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create sqlite repository: %w", err)
		}
		return &repositories{Tasks: repo, Cache: repo, Close: repo.Close}, nil

	case model.StorageBackendFile:
		tasks, err := jsonfile.NewTaskRepository(jsonfile.TaskRepositoryConfig{
			Path:     conventions.RuntimePath(projectRoot, conventions.TasksFile),
			LockPath: conventions.RuntimePath(projectRoot, conventions.TasksLockFile),
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create task repository: %w", err)
		}

		cache, err := jsonfile.NewCacheRepository(jsonfile.CacheRepositoryConfig{
			Dir:    cacheDir(cfg),
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create cache repository: %w", err)
		}
		return &repositories{Tasks: tasks, Cache: cache, Close: func() error { return nil }}, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q: %w", cfg.Storage.Backend, model.ErrNotValid)
}

func cacheDir(cfg model.Config) string {
	if cfg.LLM.CacheDir != "" {
		return expandHome(cfg.LLM.CacheDir)
	}
	return conventions.LLMCachePath(homedir.HomeDir())
}

// expandHome replaces a leading `~` with the user home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	return filepath.Join(homedir.HomeDir(), strings.TrimPrefix(path, "~"))
}

func newGateway(cfg model.Config, cache storage.CacheRepository, logger log.Logger) (*llm.Gateway, error) {
	backend, err := provider.New(provider.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		Endpoint:  cfg.LLM.Endpoint,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create llm backend: %w", err)
	}

	limiter, err := llm.NewRateLimiter(llm.RateLimiterConfig{
		Limit:  cfg.LLM.RateLimit,
		Window: cfg.LLM.RateWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create rate limiter: %w", err)
	}

	gw, err := llm.NewGateway(llm.GatewayConfig{
		Backend:      backend,
		Cache:        cache,
		Limiter:      limiter,
		Model:        backend.Model(),
		CacheTTL:     cfg.LLM.CacheTTL,
		QuotaBackoff: cfg.LLM.QuotaBackoff,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create llm gateway: %w", err)
	}

	return gw, nil
}

// executorOptions are the command line overrides of the executor configuration.
type executorOptions struct {
	// DryRun replaces every runner with one that doesn't execute anything.
	DryRun   bool
	EnvSpecs []string
}

func newExecutor(cfg model.Config, projectRoot string, opts executorOptions, logger log.Logger) (*exec.Service, error) {
	flagEnv, err := env.ParseSpecs(opts.EnvSpecs)
	if err != nil {
		return nil, fmt.Errorf("invalid --env value: %w", err)
	}

	var host, sb sandbox.Runner
	if opts.DryRun {
		host, err = fake.NewRunner(fake.RunnerConfig{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("could not create dry run runner: %w", err)
		}
	} else {
		host, err = shell.NewRunner(shell.RunnerConfig{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("could not create host runner: %w", err)
		}

		sb, err = newSandbox(cfg.Executor, logger)
		if err != nil {
			return nil, err
		}
	}

	svc, err := exec.NewService(exec.ServiceConfig{
		Sandbox:    sb,
		Host:       host,
		Timeout:    cfg.Executor.Timeout,
		WorkingDir: projectRoot,
		Env:        env.MergeMaps(cfg.Executor.Env, flagEnv),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create executor: %w", err)
	}

	return svc, nil
}

func newSandbox(cfg model.ExecutorConfig, logger log.Logger) (sandbox.Runner, error) {
	switch strings.ToLower(cfg.Sandbox) {
	case model.SandboxOpenCore:
		r, err := opencore.NewRunner(opencore.RunnerConfig{Binary: cfg.SandboxBinary, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("could not create opencore runner: %w", err)
		}
		return r, nil

	case model.SandboxDocker:
		r, err := docker.NewRunner(docker.RunnerConfig{Image: cfg.DockerImage, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("could not create docker runner: %w", err)
		}
		return r, nil

	case model.SandboxNone:
		return nil, nil
	}

	return nil, fmt.Errorf("unknown executor sandbox %q: %w", cfg.Sandbox, model.ErrNotValid)
}
