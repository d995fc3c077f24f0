package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("expected burst of 2 to pass")
	}
	if rl.Allow("a") {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("expected other client to have its own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatalf("expected token refill after one second")
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(limiterIdleTTL + limiterSweepGap + time.Second)
	rl.Allow("fresh")

	rl.mu.Lock()
	_, ok := rl.limiters["idle"]
	rl.mu.Unlock()
	if ok {
		t.Fatalf("expected idle client to be evicted")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(0.001, 1)(next)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("X-Real-Ip", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", code)
	}
}

func TestClientKeyStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := clientKey(req); got != "192.0.2.7" {
		t.Fatalf("expected host only, got %q", got)
	}
}
