package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage"
)

const cachedPromptPrefix = 200

// GatewayConfig is the configuration for the Gateway.
type GatewayConfig struct {
	Backend Backend
	Cache   storage.CacheRepository
	Limiter *RateLimiter
	// Model is stored with the cached responses.
	Model        string
	CacheTTL     time.Duration
	QuotaBackoff time.Duration
	Logger       log.Logger
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
}

func (c *GatewayConfig) defaults() error {
	if c.Backend == nil {
		return fmt.Errorf("backend is required")
	}
	if c.Cache == nil {
		return fmt.Errorf("cache repository is required")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	if c.Limiter == nil {
		l, err := NewRateLimiter(RateLimiterConfig{Limit: 10, Window: 60 * time.Second, Now: c.Now, Sleep: c.Sleep})
		if err != nil {
			return fmt.Errorf("could not create rate limiter: %w", err)
		}
		c.Limiter = l
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.QuotaBackoff < 0 {
		return fmt.Errorf("quota backoff can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "llm.Gateway"})
	return nil
}

// Gateway is the single entry point to the language model, it adds a response
// cache and a rate limit on top of the backend and absorbs backend errors.
type Gateway struct {
	backend      Backend
	cache        storage.CacheRepository
	limiter      *RateLimiter
	model        string
	cacheTTL     time.Duration
	quotaBackoff time.Duration
	logger       log.Logger
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

var _ Completer = &Gateway{}

// NewGateway returns a new Gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Gateway{
		backend:      cfg.Backend,
		cache:        cfg.Cache,
		limiter:      cfg.Limiter,
		model:        cfg.Model,
		cacheTTL:     cfg.CacheTTL,
		quotaBackoff: cfg.QuotaBackoff,
		logger:       cfg.Logger,
		now:          cfg.Now,
		sleep:        cfg.Sleep,
	}, nil
}

// CacheKey returns the cache key of a prompt.
func CacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Complete returns the completion for the request. It never fails, when the
// backend can't answer it returns the deterministic fallback of the prompt.
func (g *Gateway) Complete(ctx context.Context, req Request) string {
	key := CacheKey(req.Prompt)
	logger := g.logger.WithCtxValues(ctx).WithValues(log.Kv{"prompt-key": key[:12]})

	if !req.NoCache {
		resp, ok := g.cached(ctx, logger, key)
		if ok {
			logger.Debugf("Using cached response")
			return resp
		}
	}

	resp, err := g.call(ctx, logger, req)
	if err != nil {
		logger.Errorf("LLM completion error: %s", err)
		return Fallback(req.Prompt)
	}
	if strings.TrimSpace(resp) == "" {
		logger.Warningf("LLM returned an empty completion")
		return Fallback(req.Prompt)
	}

	if !req.NoCache {
		err := g.cache.SetCacheEntry(ctx, model.CacheEntry{
			Key:       key,
			Prompt:    prefix(req.Prompt, cachedPromptPrefix),
			Response:  resp,
			Model:     g.model,
			CreatedAt: g.now().UTC(),
		})
		if err != nil {
			logger.Warningf("could not cache response: %s", err)
		}
	}

	return resp
}

// prefix returns at most n bytes of s without splitting a rune.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (g *Gateway) cached(ctx context.Context, logger log.Logger, key string) (string, bool) {
	e, err := g.cache.GetCacheEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			logger.Warningf("could not read response cache: %s", err)
		}
		return "", false
	}

	if !e.IsFresh(g.now(), g.cacheTTL) {
		return "", false
	}

	return e.Response, true
}

// call sends the request to the backend through the rate window, a quota
// error is retried once after the quota back-off.
func (g *Gateway) call(ctx context.Context, logger log.Logger, req Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := g.backend.Complete(ctx, req)
	if !errors.Is(err, ErrQuotaExceeded) {
		return resp, err
	}

	logger.Warningf("Rate limit exceeded, waiting %s", g.quotaBackoff)
	if err := g.sleep(ctx, g.quotaBackoff); err != nil {
		return "", fmt.Errorf("could not wait for quota: %w", err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	return g.backend.Complete(ctx, req)
}
