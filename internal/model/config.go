package model

import (
	"fmt"
	"regexp"
	"time"
)

var envKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LLM providers.
const (
	LLMProviderOpenAI    = "openai"
	LLMProviderAnthropic = "anthropic"
	LLMProviderOllama    = "ollama"
)

// Sandbox kinds.
const (
	SandboxOpenCore = "opencore"
	SandboxDocker   = "docker"
	SandboxNone     = "none"
)

// Storage backends.
const (
	StorageBackendFile   = "file"
	StorageBackendSQLite = "sqlite"
)

// Config is the agent configuration, read once at startup.
type Config struct {
	Agent     AgentConfig
	LLM       LLMConfig
	Executor  ExecutorConfig
	Storage   StorageConfig
	Workflows WorkflowsConfig
}

// AgentConfig configures the orchestration loops.
type AgentConfig struct {
	AutoAnalyze       bool
	AutoExecute       bool
	WatchMode         bool
	IgnorePatterns    []string
	PollInterval      time.Duration
	ErrorBackoff      time.Duration
	ReanalyzeInterval time.Duration
}

// LLMConfig configures the language model gateway and its backend.
type LLMConfig struct {
	Provider     string
	Model        string
	Endpoint     string
	APIKeyEnv    string
	RateLimit    int
	RateWindow   time.Duration
	QuotaBackoff time.Duration
	CacheTTL     time.Duration
	CacheDir     string
}

// ExecutorConfig configures the command executor.
type ExecutorConfig struct {
	Sandbox       string
	SandboxBinary string
	DockerImage   string
	Timeout       time.Duration
	// Env is set on every executed command.
	Env map[string]string
}

// StorageConfig configures where tasks and cached responses are persisted.
type StorageConfig struct {
	Backend string
}

// WorkflowsConfig has the ordered action names for each workflow trigger.
type WorkflowsConfig struct {
	OnFileChange []string
	OnGitCommit  []string
}

// DefaultIgnorePatterns are the paths the file watcher ignores by default.
var DefaultIgnorePatterns = []string{
	"node_modules/**",
	".git/**",
	"__pycache__/**",
	"*.pyc",
	".iacore/runtime/**",
}

// DefaultConfig returns the configuration used for missing keys.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			AutoAnalyze:       true,
			AutoExecute:       false,
			WatchMode:         true,
			IgnorePatterns:    append([]string{}, DefaultIgnorePatterns...),
			PollInterval:      5 * time.Second,
			ErrorBackoff:      10 * time.Second,
			ReanalyzeInterval: 1800 * time.Second,
		},
		LLM: LLMConfig{
			Provider:     LLMProviderOpenAI,
			Model:        "gpt-4o-mini",
			RateLimit:    10,
			RateWindow:   60 * time.Second,
			QuotaBackoff: 60 * time.Second,
			CacheTTL:     24 * time.Hour,
		},
		Executor: ExecutorConfig{
			Sandbox:       SandboxOpenCore,
			SandboxBinary: "opencore",
			DockerImage:   "alpine:3.20",
			Timeout:       300 * time.Second,
		},
		Storage: StorageConfig{
			Backend: StorageBackendFile,
		},
		Workflows: WorkflowsConfig{
			OnFileChange: []string{"detect_impact", "analyze_context"},
			OnGitCommit:  []string{"analyze_commit", "suggest_improvements"},
		},
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case LLMProviderOpenAI, LLMProviderAnthropic, LLMProviderOllama:
	default:
		return fmt.Errorf("unknown llm provider %q: %w", c.LLM.Provider, ErrNotValid)
	}

	switch c.Executor.Sandbox {
	case SandboxOpenCore, SandboxDocker, SandboxNone:
	default:
		return fmt.Errorf("unknown executor sandbox %q: %w", c.Executor.Sandbox, ErrNotValid)
	}

	switch c.Storage.Backend {
	case StorageBackendFile, StorageBackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q: %w", c.Storage.Backend, ErrNotValid)
	}

	if c.LLM.RateLimit <= 0 {
		return fmt.Errorf("llm rate limit must be positive, got: %d: %w", c.LLM.RateLimit, ErrNotValid)
	}

	durations := map[string]time.Duration{
		"agent.poll_interval":      c.Agent.PollInterval,
		"agent.error_backoff":      c.Agent.ErrorBackoff,
		"agent.reanalyze_interval": c.Agent.ReanalyzeInterval,
		"llm.rate_window":          c.LLM.RateWindow,
		"llm.cache_ttl":            c.LLM.CacheTTL,
		"executor.timeout":         c.Executor.Timeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got: %s: %w", name, d, ErrNotValid)
		}
	}

	for k := range c.Executor.Env {
		if !envKeyRegexp.MatchString(k) {
			return fmt.Errorf("invalid executor env key %q: %w", k, ErrNotValid)
		}
	}

	if c.LLM.QuotaBackoff < 0 {
		return fmt.Errorf("llm.quota_backoff can't be negative: %w", ErrNotValid)
	}

	return nil
}
