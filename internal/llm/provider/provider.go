package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/slok/iacore/internal/llm"
	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
)

// Config is the configuration of an HTTP language model backend.
type Config struct {
	Provider string
	Model    string
	// Endpoint overrides the provider default endpoint.
	Endpoint string
	// APIKeyEnv overrides the provider default API key environment variable.
	APIKeyEnv  string
	HTTPClient *http.Client
	// Getenv is replaceable for tests.
	Getenv func(string) string
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	if c.Getenv == nil {
		c.Getenv = os.Getenv
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "llm.provider.HTTP", "provider": c.Provider})
	return nil
}

type adapter struct {
	defaultEndpoint  string
	defaultModel     string
	defaultAPIKeyEnv string
	requiresKey      bool
	buildRequest     func(model string, req llm.Request) ([]byte, error)
	parseResponse    func(body []byte) (string, error)
	setHeaders       func(r *http.Request, apiKey string)
}

// HTTPBackend is a language model backend that talks to a provider HTTP API.
type HTTPBackend struct {
	name     string
	model    string
	endpoint string
	keyEnv   string
	apiKey   func() string
	client   *http.Client
	adapter  adapter
	logger   log.Logger
}

var _ llm.Backend = &HTTPBackend{}

// New returns the backend for the configured provider.
func New(cfg Config) (*HTTPBackend, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var a adapter
	switch cfg.Provider {
	case model.LLMProviderOpenAI:
		a = openAIAdapter()
	case model.LLMProviderAnthropic:
		a = anthropicAdapter()
	case model.LLMProviderOllama:
		a = ollamaAdapter()
	default:
		return nil, fmt.Errorf("unknown provider %q: %w", cfg.Provider, model.ErrNotValid)
	}

	keyEnv := valueOrDefault(cfg.APIKeyEnv, a.defaultAPIKeyEnv)
	getenv := cfg.Getenv

	return &HTTPBackend{
		name:     cfg.Provider,
		model:    valueOrDefault(cfg.Model, a.defaultModel),
		endpoint: valueOrDefault(cfg.Endpoint, a.defaultEndpoint),
		keyEnv:   keyEnv,
		apiKey: func() string {
			if keyEnv == "" {
				return ""
			}
			return getenv(keyEnv)
		},
		client:  cfg.HTTPClient,
		adapter: a,
		logger:  cfg.Logger,
	}, nil
}

// Model returns the model the backend asks for.
func (b *HTTPBackend) Model() string { return b.model }

// Complete satisfies llm.Backend.
func (b *HTTPBackend) Complete(ctx context.Context, req llm.Request) (string, error) {
	apiKey := b.apiKey()
	if b.adapter.requiresKey && apiKey == "" {
		return "", fmt.Errorf("%s: missing API key: %w", b.name, llm.ErrUnauthorized)
	}

	body, err := b.adapter.buildRequest(b.model, req)
	if err != nil {
		return "", fmt.Errorf("could not build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	b.adapter.setHeaders(httpReq, apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", b.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read %s response: %w", b.name, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%s: %s: %w", b.name, resp.Status, llm.ErrQuotaExceeded)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%s: %s: %w", b.name, resp.Status, llm.ErrUnauthorized)
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("%s: %s: %s", b.name, resp.Status, truncate(string(respBody), 200))
	}

	content, err := b.adapter.parseResponse(respBody)
	if err != nil {
		return "", fmt.Errorf("could not parse %s response: %w", b.name, err)
	}

	b.logger.Debugf("Completion received (%d chars)", len(content))
	return strings.TrimSpace(content), nil
}

// Check returns the backend preflight checks, it doesn't call the provider.
func (b *HTTPBackend) Check(ctx context.Context) []model.CheckResult {
	key := model.CheckResult{ID: "llm_api_key", Status: model.CheckStatusOK}
	switch {
	case !b.adapter.requiresKey:
		key.Message = fmt.Sprintf("%s doesn't require an API key", b.name)
	case b.apiKey() == "":
		key.Status = model.CheckStatusError
		key.Message = fmt.Sprintf("%s is not set", b.keyEnv)
	default:
		key.Message = fmt.Sprintf("API key found in %s", b.keyEnv)
	}

	return []model.CheckResult{
		{ID: "llm_backend", Message: fmt.Sprintf("%s (%s) at %s", b.name, b.model, b.endpoint), Status: model.CheckStatusOK},
		key,
	}
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
