package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/vision-helper/internal/api/router"
	appconfig "github.com/wolfman30/vision-helper/internal/config"
	"github.com/wolfman30/vision-helper/internal/conversation"
	"github.com/wolfman30/vision-helper/internal/generation"
	"github.com/wolfman30/vision-helper/internal/locale"
	"github.com/wolfman30/vision-helper/internal/observability/metrics"
	"github.com/wolfman30/vision-helper/internal/ocr"
	"github.com/wolfman30/vision-helper/internal/persona"
	"github.com/wolfman30/vision-helper/internal/queue"
	"github.com/wolfman30/vision-helper/internal/webchat"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

// Runtime is the fully wired reading assistant.
type Runtime struct {
	Assistant *conversation.Assistant
	Queue     *queue.Queue
	Metrics   *metrics.AssistantMetrics
	Health    router.HealthInfo
	Language  locale.Language

	closers []func() error
}

// Close stops the queue and releases backend connections.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	if rt.Queue != nil {
		rt.Queue.Close()
	}
	var firstErr error
	for _, c := range rt.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildAssistant wires config -> backend -> retrying client (+ cache) ->
// optional Bedrock fallback -> request queue -> assistant. reg may be nil to
// use the default prometheus registerer.
func BuildAssistant(ctx context.Context, cfg *appconfig.Config, reg prometheus.Registerer, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		logger.Warn("configuration problems", "error", err)
	}

	m := metrics.NewAssistantMetrics(reg)
	rt := &Runtime{Metrics: m, Language: locale.Parse(cfg.Language)}

	backend, closeBackend := BuildBackend(ctx, cfg, logger)
	rt.closers = append(rt.closers, closeBackend)

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		rt.closers = append(rt.closers, redisClient.Close)
	}

	client, err := BuildClient(cfg, backend, cfg.GeminiModel, redisClient, m, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	var gen generation.Generator = client
	fallback, err := BuildBedrockFallback(ctx, cfg, m, logger)
	if err != nil {
		logger.Warn("bedrock fallback disabled", "error", err)
	}
	if fallback != nil {
		gen = generation.NewFallbackGenerator(client, fallback, logger)
	}

	rt.Queue = queue.New(gen,
		queue.WithMinInterval(cfg.MinRequestInterval),
		queue.WithLogger(logger),
		queue.WithObserver(m),
	)

	var ocrService *ocr.Service
	ocrReady := false
	if command := strings.TrimSpace(cfg.OCRCommand); command != "" {
		ocrService = ocr.NewService(ocr.TesseractCLI{Command: command}, cfg.OCRTimeout, cfg.OCRLanguages, logger)
		if _, err := exec.LookPath(command); err == nil {
			ocrReady = true
		} else {
			logger.Warn("ocr command not found; photo reading will fall back", "command", command)
		}
	}

	dispatcher := persona.NewDispatcher(persona.DefaultCatalog(),
		persona.WithLogger(logger),
		persona.WithObserver(m),
	)

	assistant, err := conversation.NewAssistant(conversation.AssistantConfig{
		Generator:  rt.Queue,
		Dispatcher: dispatcher,
		Store:      conversation.NewContextStore(cfg.ContextCapacity),
		Segmenter:  conversation.NewSegmenter(cfg.SegmentThreshold, locale.For(rt.Language).ContinuePrompt),
		Intent:     locale.NewContinuationIntent(cfg.ContinuePhrases...),
		OCR:        ocrService,
		GenerationConfig: generation.Config{
			MaxOutputTokens: cfg.GenerationMaxTokens,
			Temperature:     cfg.GenerationTemperature,
			TopK:            cfg.GenerationTopK,
			TopP:            cfg.GenerationTopP,
		},
		Language:  rt.Language,
		AddressAs: cfg.AddressAs,
		Logger:    logger,
		Observer:  m,
	})
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("bootstrap: assistant: %w", err)
	}
	rt.Assistant = assistant
	rt.Health = router.HealthInfo{
		Model:           cfg.GeminiModel,
		Backend:         backend.Name(),
		GenerationReady: cfg.GeminiAPIKey != "",
		OCRReady:        ocrReady,
	}

	logger.Info("reading assistant ready",
		"model", cfg.GeminiModel,
		"backend", backend.Name(),
		"api_key", cfg.GeminiAPIKey,
		"cache", redisClient != nil,
		"bedrock_fallback", fallback != nil,
		"min_interval_ms", cfg.MinRequestInterval.Milliseconds(),
	)
	return rt, nil
}

// BuildRouter exposes rt over HTTP and WebSocket. gatherer backs /metrics and
// may be nil to use the default gatherer.
func BuildRouter(rt *Runtime, cfg *appconfig.Config, gatherer prometheus.Gatherer, logger *logging.Logger) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return router.New(&router.Config{
		Logger:             logger,
		AssistantHandler:   conversation.NewHandler(rt.Assistant, logger),
		WebChat:            webchat.NewHandler(rt.Assistant, rt.Language, logger),
		MetricsHandler:     promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		RequestObserver:    rt.Metrics,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		Health:             rt.Health,
	})
}
