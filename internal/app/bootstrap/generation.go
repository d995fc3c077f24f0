package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/vision-helper/internal/config"
	"github.com/wolfman30/vision-helper/internal/generation"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

// BuildBackend selects the Gemini transport. An SDK backend that cannot be
// created (for example without an API key) degrades to the REST backend,
// which reports the misconfiguration on every call instead of refusing to
// start. The returned closer is never nil.
func BuildBackend(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (generation.Backend, func() error) {
	noop := func() error { return nil }
	rest := generation.NewRESTBackend(generation.RESTConfig{
		BaseURL: cfg.GeminiBaseURL,
		APIKey:  cfg.GeminiAPIKey,
		Timeout: cfg.HTTPTimeout,
	})
	if cfg.GeminiTransport != "sdk" {
		return rest, noop
	}

	sdk, err := generation.NewGenAIBackend(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn("gemini sdk backend unavailable; using rest", "error", err)
		return rest, noop
	}
	return sdk, sdk.Close
}

// BuildClient wraps backend with retries, telemetry and the optional reply
// cache.
func BuildClient(cfg *appconfig.Config, backend generation.Backend, model string, redisClient *redis.Client, observer generation.Observer, logger *logging.Logger) (*generation.Client, error) {
	clientCfg := generation.ClientConfig{
		Backend:    backend,
		Model:      model,
		MaxRetries: cfg.RetryMaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		Logger:     logger,
		Observer:   observer,
	}
	if redisClient != nil {
		clientCfg.Cache = generation.NewRedisCache(redisClient, cfg.ResponseCacheTTL, nil)
	}
	client, err := generation.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: generation client: %w", err)
	}
	return client, nil
}

// BuildBedrockFallback returns a Bedrock-backed generator used when Gemini
// fails, or nil when BEDROCK_MODEL_ID is unset.
func BuildBedrockFallback(ctx context.Context, cfg *appconfig.Config, observer generation.Observer, logger *logging.Logger) (generation.Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	model := strings.TrimSpace(cfg.BedrockModelID)
	if model == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	backend := generation.NewBedrockBackend(bedrockruntime.NewFromConfig(awsCfg), model)

	client, err := BuildClient(cfg, backend, model, nil, observer, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("bedrock fallback enabled", "model", model, "region", cfg.AWSRegion)
	return client, nil
}
