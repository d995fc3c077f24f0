package generation

import (
	"context"
	"errors"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/vision-helper/pkg/logging"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 2000 * time.Millisecond

	// MaxRetriesLimit bounds ClientConfig.MaxRetries.
	MaxRetriesLimit = 10
	// MaxBackoff caps a single retry delay.
	MaxBackoff = 5 * time.Minute
)

// Observer receives generation telemetry. *metrics.AssistantMetrics
// satisfies it.
type Observer interface {
	ObserveGeneration(backend, outcome string, attempts int, seconds float64)
	ObserveRetry(backend, reason string)
	ObserveCache(hit bool)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ClientConfig controls how the Client behaves.
type ClientConfig struct {
	Backend Backend
	Model   string
	// MaxRetries is the number of retries after the first attempt, so 5 means
	// up to 6 calls. Negative disables retries, zero selects the default of 5
	// and values above MaxRetriesLimit are lowered to it.
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      SleepFunc
	Cache      Cache
	Logger     *logging.Logger
	Observer   Observer
	Tracer     trace.Tracer
}

// Client retries a Backend on rate limiting and transient network failures
// with exponential backoff: delay = BaseDelay * 2^retry.
type Client struct {
	backend    Backend
	model      string
	maxRetries int
	baseDelay  time.Duration
	sleep      SleepFunc
	cache      Cache
	logger     *logging.Logger
	observer   Observer
	tracer     trace.Tracer
	now        func() time.Time
}

// NewClient creates a configured Client with sane defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Backend == nil {
		return nil, errors.New("generation: backend is required")
	}
	if cfg.Model == "" {
		return nil, &ConfigError{Field: "GEMINI_MODEL"}
	}
	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	case maxRetries > MaxRetriesLimit:
		maxRetries = MaxRetriesLimit
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("visionhelper.internal.generation")
	}
	return &Client{
		backend:    cfg.Backend,
		model:      cfg.Model,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleep,
		cache:      cfg.Cache,
		logger:     logger,
		observer:   cfg.Observer,
		tracer:     tracer,
		now:        time.Now,
	}, nil
}

// Model returns the model ID the client calls.
func (c *Client) Model() string { return c.model }

// Generate sends history to the model and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, history []Content, cfg Config) (string, error) {
	ctx, span := c.tracer.Start(ctx, "generation.generate", trace.WithAttributes(
		attribute.String("generation.backend", c.backend.Name()),
		attribute.String("generation.model", c.model),
		attribute.Int("generation.turns", len(history)),
	))
	defer span.End()

	if len(history) == 0 {
		err := errors.New("generation: empty prompt history")
		span.RecordError(err)
		return "", err
	}

	req := Request{Model: c.model, Contents: history, Config: cfg}

	var key string
	if c.cache != nil {
		key = CacheKey(req)
		if text, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn("generation cache read failed", "error", err)
		} else {
			c.observeCache(ok)
			if ok {
				span.SetAttributes(attribute.Bool("generation.cache_hit", true))
				return text, nil
			}
		}
	}

	start := c.now()
	text, attempts, err := c.invoke(ctx, req)
	span.SetAttributes(attribute.Int("generation.attempts", attempts))
	elapsed := c.now().Sub(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		c.observeGeneration(outcome(err), attempts, elapsed)
		c.logger.Error("generation failed",
			"backend", c.backend.Name(),
			"model", c.model,
			"attempts", attempts,
			"error", err,
		)
		return "", err
	}

	c.observeGeneration("success", attempts, elapsed)
	c.logger.Info("generation finished",
		"backend", c.backend.Name(),
		"model", c.model,
		"attempts", attempts,
		"latency_ms", elapsed.Milliseconds(),
	)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, text); err != nil {
			c.logger.Warn("generation cache write failed", "error", err)
		}
	}
	return text, nil
}

func (c *Client) invoke(ctx context.Context, req Request) (string, int, error) {
	for attempt := 0; ; attempt++ {
		text, err := c.backend.GenerateOnce(ctx, req)
		if err == nil {
			return text, attempt + 1, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", attempt + 1, ctxErr
		}

		reason, retryable := retryReason(err)
		if !retryable {
			return "", attempt + 1, err
		}
		if attempt >= c.maxRetries {
			return "", attempt + 1, exhausted(err, attempt+1)
		}

		delay := backoff(c.baseDelay, attempt)
		c.logRetry(attempt, delay, reason, err)
		if c.observer != nil {
			c.observer.ObserveRetry(c.backend.Name(), reason)
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", attempt + 1, sleepErr
		}
	}
}

// backoff returns base * 2^retry, capped at MaxBackoff.
func backoff(base time.Duration, retry int) time.Duration {
	delay := base
	for i := 0; i < retry && delay < MaxBackoff; i++ {
		delay *= 2
	}
	if delay > MaxBackoff {
		return MaxBackoff
	}
	return delay
}

func (c *Client) logRetry(attempt int, delay time.Duration, reason string, err error) {
	c.logger.Warn("generation retry",
		"backend", c.backend.Name(),
		"attempt", attempt+1,
		"max_retries", c.maxRetries,
		"delay_ms", delay.Milliseconds(),
		"reason", reason,
		"error", err,
	)
}

func (c *Client) observeGeneration(outcome string, attempts int, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveGeneration(c.backend.Name(), outcome, attempts, elapsed.Seconds())
}

func (c *Client) observeCache(hit bool) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveCache(hit)
}

// retryReason reports whether err warrants another attempt.
func retryReason(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return "rate_limited", apiErr.RateLimited()
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "network", true
	}
	var opErr net.Error
	if errors.As(err, &opErr) {
		return "network", true
	}
	return "", false
}

func exhausted(err error, attempts int) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &RateLimitError{Attempts: attempts, Last: apiErr}
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{Attempts: attempts, Err: netErr.Err}
	}
	return &NetworkError{Attempts: attempts, Err: err}
}

func outcome(err error) string {
	var (
		cfgErr  *ConfigError
		rlErr   *RateLimitError
		netErr  *NetworkError
		apiErr  *APIError
		malform *MalformedResponseError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.As(err, &rlErr):
		return "rate_limited"
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &malform):
		return "malformed"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
