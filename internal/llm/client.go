package llm

import (
	"context"
	stderrors "errors"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/errors"
)

// Provider names a generation backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Client wraps a Backend with rate limiting, bounded retries, and the
// error taxonomy. Callers see exactly two failure modes: the request was
// rejected (no retry helps) or the backend is unavailable (retries
// exhausted).
type Client struct {
	backend     Backend
	provider    Provider
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	logger      *slog.Logger
}

// NewClient creates a client for the configured provider.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	var (
		backend Backend
		err     error
	)

	provider := Provider(cfg.API.Provider)
	switch provider {
	case ProviderOpenAI:
		backend, err = NewOpenAIBackend(cfg.API.OpenAIKey, cfg.API.OpenAIModel)
	case ProviderGemini:
		backend, err = NewGeminiBackend(ctx, cfg.API.GeminiKey, cfg.API.GeminiModel)
	default:
		return nil, errors.ConfigErrorf("unknown provider %q (want %q or %q)",
			cfg.API.Provider, ProviderOpenAI, ProviderGemini)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "backend initialization failed")
	}

	return NewClientWithBackend(backend, provider, cfg.API), nil
}

// NewClientWithBackend wires a client around an existing backend.
func NewClientWithBackend(backend Backend, provider Provider, cfg config.APIConfig) *Client {
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		backend:     backend,
		provider:    provider,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		maxAttempts: attempts,
		baseDelay:   baseDelay,
		timeout:     timeout,
		logger:      slog.Default().With("component", "llm", "provider", string(provider)),
	}
}

// Generate runs one generation with bounded retries and exponential
// backoff. Transient failures (429, 5xx, timeouts) are retried; anything
// the provider rejects outright is returned as GenerationRejected without
// further attempts.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.GenerationUnavailable(err, "rate limiter interrupted")
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.backend.Generate(attemptCtx, req)
		cancel()

		if err == nil {
			return resp, nil
		}
		lastErr = err

		if rejected(err) {
			c.logger.Warn("backend rejected request", "attempt", attempt, "error", err)
			return nil, errors.GenerationRejected(err, "backend rejected the request")
		}
		if ctx.Err() != nil {
			return nil, errors.GenerationUnavailable(lastErr, "generation canceled")
		}

		c.logger.Warn("backend attempt failed",
			"attempt", attempt, "max_attempts", c.maxAttempts, "error", err)

		if attempt < c.maxAttempts {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return nil, errors.GenerationUnavailable(lastErr, "generation canceled")
			}
		}
	}

	return nil, errors.GenerationUnavailable(lastErr, "generation failed after retries")
}

// backoff returns the delay before the next attempt: exponential in the
// attempt number with a little jitter to avoid thundering herds.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if jitter := delay / 5; jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	return delay
}

// rejected reports whether the provider refused the request itself, as
// opposed to being temporarily unavailable. Client errors other than
// timeouts and rate limits fall in this bucket.
func rejected(err error) bool {
	var oerr *openai.APIError
	if stderrors.As(err, &oerr) {
		return isRejectStatus(oerr.HTTPStatusCode)
	}
	var gerr genai.APIError
	if stderrors.As(err, &gerr) {
		return isRejectStatus(gerr.Code)
	}
	var nerr net.Error
	if stderrors.As(err, &nerr) {
		return false
	}
	return false
}

func isRejectStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
