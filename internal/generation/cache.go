package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultCacheTTL = time.Hour

// Cache stores replies for identical requests.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
}

// RedisCache keeps replies in redis with a TTL.
type RedisCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisCache wraps client. A non-positive ttl selects one hour.
func NewRedisCache(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisCache {
	if client == nil {
		panic("generation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("visionhelper.internal.generation.cache")
	}
	return &RedisCache{redis: client, ttl: ttl, tracer: tracer}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := c.tracer.Start(ctx, "generation.cache_get")
	defer span.End()

	text, err := c.redis.Get(ctx, cacheRedisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		span.RecordError(err)
		return "", false, fmt.Errorf("generation: failed to read cache: %w", err)
	}
	return text, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, text string) error {
	ctx, span := c.tracer.Start(ctx, "generation.cache_set")
	defer span.End()

	if err := c.redis.Set(ctx, cacheRedisKey(key), text, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("generation: failed to write cache: %w", err)
	}
	return nil
}

func cacheRedisKey(key string) string {
	return fmt.Sprintf("generation:reply:%s", key)
}

// CacheKey derives a stable key from the model, the full history and the
// sampling parameters.
func CacheKey(req Request) string {
	payload, _ := json.Marshal(struct {
		Model    string    `json:"model"`
		Contents []Content `json:"contents"`
		Config   Config    `json:"config"`
	}{req.Model, req.Contents, req.Config})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
