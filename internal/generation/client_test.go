package generation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/vision-helper/pkg/logging"
)

type scriptedBackend struct {
	mu      sync.Mutex
	results []scriptedResult
	calls   int
	seen    []Request
}

type scriptedResult struct {
	text string
	err  error
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) GenerateOnce(_ context.Context, req Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen = append(b.seen, req)
	idx := b.calls
	b.calls++
	if idx >= len(b.results) {
		idx = len(b.results) - 1
	}
	r := b.results[idx]
	return r.text, r.err
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type memoryCache struct {
	entries map[string]string
	sets    int
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	text, ok := c.entries[key]
	return text, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key, text string) error {
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[key] = text
	c.sets++
	return nil
}

type countingObserver struct {
	outcomes []string
	retries  []string
	hits     int
	misses   int
}

func (o *countingObserver) ObserveGeneration(_ string, outcome string, _ int, _ float64) {
	o.outcomes = append(o.outcomes, outcome)
}

func (o *countingObserver) ObserveRetry(_ string, reason string) {
	o.retries = append(o.retries, reason)
}

func (o *countingObserver) ObserveCache(hit bool) {
	if hit {
		o.hits++
		return
	}
	o.misses++
}

func rateLimited() scriptedResult {
	return scriptedResult{err: &APIError{Status: http.StatusTooManyRequests, Message: "quota"}}
}

func newTestClient(t *testing.T, backend Backend, sleeper *recordingSleeper, mutate ...func(*ClientConfig)) *Client {
	t.Helper()
	cfg := ClientConfig{
		Backend: backend,
		Model:   "gemini-2.0-flash",
		Sleep:   sleeper.Sleep,
		Logger:  logging.NewWithWriter(io.Discard, "error"),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

var testHistory = []Content{UserText("你好")}

func TestGenerateRetriesRateLimitWithExponentialBackoff(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{rateLimited(), rateLimited(), {text: "您好"}}}
	sleeper := &recordingSleeper{}
	client := newTestClient(t, backend, sleeper)

	text, err := client.Generate(context.Background(), testHistory, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "您好" {
		t.Fatalf("expected reply text, got %q", text)
	}
	if backend.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", backend.calls)
	}
	want := []time.Duration{2000 * time.Millisecond, 4000 * time.Millisecond}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, sleeper.delays)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Fatalf("delay %d: expected %v, got %v", i, want[i], sleeper.delays[i])
		}
	}
}

func TestGenerateGivesUpAfterMaxRetries(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{rateLimited()}}
	sleeper := &recordingSleeper{}
	client := newTestClient(t, backend, sleeper)

	_, err := client.Generate(context.Background(), testHistory, DefaultConfig())
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rlErr.Attempts != 6 || backend.calls != 6 {
		t.Fatalf("expected 6 attempts, got attempts=%d calls=%d", rlErr.Attempts, backend.calls)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected wrapped 429, got %v", err)
	}
	if got := sleeper.delays[len(sleeper.delays)-1]; got != 32*time.Second {
		t.Fatalf("expected final delay 32s, got %v", got)
	}
}

func TestGenerateBoundsRetriesAndBackoff(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{rateLimited()}}
	sleeper := &recordingSleeper{}
	client := newTestClient(t, backend, sleeper, func(c *ClientConfig) { c.MaxRetries = 40 })

	_, err := client.Generate(context.Background(), testHistory, DefaultConfig())
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if backend.calls != MaxRetriesLimit+1 {
		t.Fatalf("expected %d calls, got %d", MaxRetriesLimit+1, backend.calls)
	}
	for i, d := range sleeper.delays {
		if d <= 0 || d > MaxBackoff {
			t.Fatalf("delay %d out of range: %v", i, d)
		}
	}
	if got := sleeper.delays[len(sleeper.delays)-1]; got != MaxBackoff {
		t.Fatalf("expected final delay capped at %v, got %v", MaxBackoff, got)
	}
}

func TestBackoffNeverOverflows(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 2 * time.Second},
		{4, 32 * time.Second},
		{33, MaxBackoff},
		{63, MaxBackoff},
	}
	for _, tt := range tests {
		if got := backoff(2*time.Second, tt.retry); got != tt.want {
			t.Fatalf("backoff(2s, %d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestGenerateRetriesNetworkErrors(t *testing.T) {
	netErr := &NetworkError{Err: errors.New("connection reset")}
	backend := &scriptedBackend{results: []scriptedResult{{err: netErr}, {text: "ok"}}}
	sleeper := &recordingSleeper{}
	client := newTestClient(t, backend, sleeper)

	text, err := client.Generate(context.Background(), testHistory, DefaultConfig())
	if err != nil || text != "ok" {
		t.Fatalf("expected success after network retry, got %q, %v", text, err)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 2*time.Second {
		t.Fatalf("expected one 2s delay, got %v", sleeper.delays)
	}
}

func TestGenerateNetworkExhaustion(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{{err: &NetworkError{Err: errors.New("dial tcp: refused")}}}}
	client := newTestClient(t, backend, &recordingSleeper{}, func(c *ClientConfig) { c.MaxRetries = 2 })

	_, err := client.Generate(context.Background(), testHistory, DefaultConfig())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", netErr.Attempts)
	}
}

func TestGenerateDoesNotRetryTerminalErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{name: "bad request", err: &APIError{Status: http.StatusBadRequest, Message: "invalid"}},
		{name: "server error", err: &APIError{Status: http.StatusServiceUnavailable, Message: "overloaded"}},
		{name: "malformed", err: &MalformedResponseError{Reason: "no candidates"}},
		{name: "config", err: &ConfigError{Field: "GEMINI_API_KEY"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &scriptedBackend{results: []scriptedResult{{err: tc.err}}}
			sleeper := &recordingSleeper{}
			observer := &countingObserver{}
			client := newTestClient(t, backend, sleeper, func(c *ClientConfig) { c.Observer = observer })

			_, err := client.Generate(context.Background(), testHistory, DefaultConfig())
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if backend.calls != 1 {
				t.Fatalf("expected a single call, got %d", backend.calls)
			}
			if len(sleeper.delays) != 0 {
				t.Fatalf("expected no sleeps, got %v", sleeper.delays)
			}
			if len(observer.retries) != 0 {
				t.Fatalf("expected no retries observed, got %v", observer.retries)
			}
		})
	}
}

func TestGenerateStopsWhenContextCanceled(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{rateLimited()}}
	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(t, backend, &recordingSleeper{}, func(c *ClientConfig) {
		c.Sleep = func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}
	})

	_, err := client.Generate(ctx, testHistory, DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if backend.calls != 1 {
		t.Fatalf("expected 1 call, got %d", backend.calls)
	}
}

func TestGenerateRejectsEmptyHistory(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{{text: "unused"}}}
	client := newTestClient(t, backend, &recordingSleeper{})

	if _, err := client.Generate(context.Background(), nil, DefaultConfig()); err == nil {
		t.Fatal("expected error for empty history")
	}
	if backend.calls != 0 {
		t.Fatalf("expected no backend calls, got %d", backend.calls)
	}
}

func TestGenerateUsesCache(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{{text: "第一次"}}}
	cache := &memoryCache{}
	observer := &countingObserver{}
	client := newTestClient(t, backend, &recordingSleeper{}, func(c *ClientConfig) {
		c.Cache = cache
		c.Observer = observer
	})

	for i := 0; i < 2; i++ {
		text, err := client.Generate(context.Background(), testHistory, DefaultConfig())
		if err != nil || text != "第一次" {
			t.Fatalf("call %d: got %q, %v", i, text, err)
		}
	}
	if backend.calls != 1 {
		t.Fatalf("expected cached second call, backend saw %d calls", backend.calls)
	}
	if observer.hits != 1 || observer.misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %d/%d", observer.hits, observer.misses)
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != "success" {
		t.Fatalf("unexpected outcomes %v", observer.outcomes)
	}
}

func TestGeneratePassesModelAndConfig(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{{text: "ok"}}}
	client := newTestClient(t, backend, &recordingSleeper{})
	cfg := Config{MaxOutputTokens: 200, Temperature: 0.2}

	if _, err := client.Generate(context.Background(), testHistory, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := backend.seen[0]
	if got.Model != "gemini-2.0-flash" || got.Config != cfg || len(got.Contents) != 1 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{Model: "m"}); err == nil {
		t.Fatal("expected error without backend")
	}
	_, err := NewClient(ClientConfig{Backend: &scriptedBackend{}})
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError without model, got %v", err)
	}
}

func TestCacheKeyIsStable(t *testing.T) {
	a := Request{Model: "m", Contents: []Content{UserText("a")}, Config: DefaultConfig()}
	b := Request{Model: "m", Contents: []Content{UserText("a")}, Config: DefaultConfig()}
	c := Request{Model: "m", Contents: []Content{UserText("b")}, Config: DefaultConfig()}
	if CacheKey(a) != CacheKey(b) {
		t.Fatal("expected identical requests to share a key")
	}
	if CacheKey(a) == CacheKey(c) {
		t.Fatal("expected different histories to differ")
	}
}
