package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/vision-helper/internal/config"
	"github.com/wolfman30/vision-helper/internal/conversation"
	"github.com/wolfman30/vision-helper/internal/locale"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		GeminiBaseURL:      "http://127.0.0.1:1",
		GeminiModel:        "gemini-2.0-flash",
		GeminiTransport:    "rest",
		MinRequestInterval: time.Millisecond,
		RetryMaxRetries:    -1,
		HTTPTimeout:        time.Second,
		ContextCapacity:    10,
		SegmentThreshold:   100,
		Language:           "zh-TW",
		OCRCommand:         "tesseract-not-installed-here",
		OCRTimeout:         time.Second,
		OCRLanguages:       "chi_tra+eng",
	}
}

func TestBuildAssistantRequiresConfig(t *testing.T) {
	if _, err := BuildAssistant(context.Background(), nil, prometheus.NewRegistry(), logging.New("error")); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildAssistantWithoutAPIKeyAnswersMisconfigured(t *testing.T) {
	rt, err := BuildAssistant(context.Background(), testConfig(), prometheus.NewRegistry(), logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	if rt.Health.GenerationReady {
		t.Fatalf("expected generation to be reported as not ready")
	}
	if rt.Health.OCRReady {
		t.Fatalf("expected missing ocr command to be reported")
	}
	if rt.Health.Backend != "gemini-rest" {
		t.Fatalf("expected rest backend, got %q", rt.Health.Backend)
	}

	reply, err := rt.Assistant.Chat(context.Background(), "早安")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.Kind != conversation.KindError || reply.Text != locale.For(locale.TraditionalChinese).Misconfigured {
		t.Fatalf("unexpected reply %#v", reply)
	}
}

func TestBuildRouterServesHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	rt, err := BuildAssistant(context.Background(), cfg, reg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	h := BuildRouter(rt, cfg, reg, logging.New("error"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["model"] != "gemini-2.0-flash" {
		t.Fatalf("unexpected health body %v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "visionhelper_") {
		t.Fatalf("expected assistant metrics to be exposed")
	}
}

func TestBuildBackendSDKWithoutKeyFallsBackToREST(t *testing.T) {
	cfg := testConfig()
	cfg.GeminiTransport = "sdk"

	backend, closer := BuildBackend(context.Background(), cfg, logging.New("error"))
	if backend.Name() != "gemini-rest" {
		t.Fatalf("expected rest backend, got %q", backend.Name())
	}
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}
}

func TestBuildBedrockFallbackDisabledWithoutModel(t *testing.T) {
	gen, err := BuildBedrockFallback(context.Background(), testConfig(), nil, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen != nil {
		t.Fatalf("expected nil fallback when model is empty")
	}
}

func TestBuildRedisClient(t *testing.T) {
	if client := BuildRedisClient(context.Background(), testConfig(), logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client without address")
	}

	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	_ = client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}
