package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/iacore/internal/model"
)

// ConfigYAMLRepository loads the agent configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetConfig loads the configuration file, a missing file or missing keys use
// the defaults. The result is validated.
func (r *ConfigYAMLRepository) GetConfig(ctx context.Context, path string) (model.Config, error) {
	cfg := model.DefaultConfig()

	data, err := fs.ReadFile(r.fs, path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return model.Config{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Config{}, ctx.Err()
	}

	if len(data) > 0 {
		var doc ConfigFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return model.Config{}, fmt.Errorf("parsing YAML: %w", err)
		}
		doc.applyTo(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return model.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ConfigFile represents the YAML structure of the configuration. Every field is
// optional so missing keys keep their defaults.
type ConfigFile struct {
	Agent     AgentConfig     `yaml:"agent"`
	LLM       LLMConfig       `yaml:"llm"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Storage   StorageConfig   `yaml:"storage"`
	Workflows WorkflowsConfig `yaml:"workflows"`
}

// AgentConfig represents the YAML structure of the agent section.
type AgentConfig struct {
	AutoAnalyze       *bool     `yaml:"auto_analyze"`
	AutoExecute       *bool     `yaml:"auto_execute"`
	WatchMode         *bool     `yaml:"watch_mode"`
	IgnorePatterns    []string  `yaml:"ignore_patterns"`
	PollInterval      *Duration `yaml:"poll_interval"`
	ErrorBackoff      *Duration `yaml:"error_backoff"`
	ReanalyzeInterval *Duration `yaml:"reanalyze_interval"`
}

// LLMConfig represents the YAML structure of the llm section.
type LLMConfig struct {
	Provider     *string   `yaml:"provider"`
	Model        *string   `yaml:"model"`
	Endpoint     *string   `yaml:"endpoint"`
	APIKeyEnv    *string   `yaml:"api_key_env"`
	RateLimit    *int      `yaml:"rate_limit"`
	RateWindow   *Duration `yaml:"rate_window"`
	QuotaBackoff *Duration `yaml:"quota_backoff"`
	CacheTTL     *Duration `yaml:"cache_ttl"`
	CacheDir     *string   `yaml:"cache_dir"`
}

// ExecutorConfig represents the YAML structure of the executor section.
type ExecutorConfig struct {
	Sandbox       *string           `yaml:"sandbox"`
	SandboxBinary *string           `yaml:"sandbox_binary"`
	DockerImage   *string           `yaml:"docker_image"`
	Timeout       *Duration         `yaml:"timeout"`
	Env           map[string]string `yaml:"env"`
}

// StorageConfig represents the YAML structure of the storage section.
type StorageConfig struct {
	Backend *string `yaml:"backend"`
}

// WorkflowsConfig represents the YAML structure of the workflows section.
type WorkflowsConfig struct {
	OnFileChange []string `yaml:"on_file_change"`
	OnGitCommit  []string `yaml:"on_git_commit"`
}

// Duration accepts Go duration strings (`90s`, `30m`) or plain integers as seconds.
type Duration time.Duration

// UnmarshalYAML satisfies yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	if node.Tag == "!!int" {
		secs, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
	}
	*d = Duration(v)

	return nil
}

func (c ConfigFile) applyTo(cfg *model.Config) {
	setBool(&cfg.Agent.AutoAnalyze, c.Agent.AutoAnalyze)
	setBool(&cfg.Agent.AutoExecute, c.Agent.AutoExecute)
	setBool(&cfg.Agent.WatchMode, c.Agent.WatchMode)
	if c.Agent.IgnorePatterns != nil {
		cfg.Agent.IgnorePatterns = c.Agent.IgnorePatterns
	}
	setDuration(&cfg.Agent.PollInterval, c.Agent.PollInterval)
	setDuration(&cfg.Agent.ErrorBackoff, c.Agent.ErrorBackoff)
	setDuration(&cfg.Agent.ReanalyzeInterval, c.Agent.ReanalyzeInterval)

	setString(&cfg.LLM.Provider, c.LLM.Provider)
	setString(&cfg.LLM.Model, c.LLM.Model)
	setString(&cfg.LLM.Endpoint, c.LLM.Endpoint)
	setString(&cfg.LLM.APIKeyEnv, c.LLM.APIKeyEnv)
	if c.LLM.RateLimit != nil {
		cfg.LLM.RateLimit = *c.LLM.RateLimit
	}
	setDuration(&cfg.LLM.RateWindow, c.LLM.RateWindow)
	setDuration(&cfg.LLM.QuotaBackoff, c.LLM.QuotaBackoff)
	setDuration(&cfg.LLM.CacheTTL, c.LLM.CacheTTL)
	setString(&cfg.LLM.CacheDir, c.LLM.CacheDir)

	setString(&cfg.Executor.Sandbox, c.Executor.Sandbox)
	setString(&cfg.Executor.SandboxBinary, c.Executor.SandboxBinary)
	setString(&cfg.Executor.DockerImage, c.Executor.DockerImage)
	setDuration(&cfg.Executor.Timeout, c.Executor.Timeout)
	if c.Executor.Env != nil {
		cfg.Executor.Env = c.Executor.Env
	}

	setString(&cfg.Storage.Backend, c.Storage.Backend)

	if c.Workflows.OnFileChange != nil {
		cfg.Workflows.OnFileChange = c.Workflows.OnFileChange
	}
	if c.Workflows.OnGitCommit != nil {
		cfg.Workflows.OnGitCommit = c.Workflows.OnGitCommit
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
