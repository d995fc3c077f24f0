package generation

import (
	"context"
	"fmt"

	"github.com/wolfman30/vision-helper/pkg/logging"
)

// FallbackGenerator tries a secondary generator when the primary fails.
type FallbackGenerator struct {
	primary  Generator
	fallback Generator
	logger   *logging.Logger
}

// NewFallbackGenerator creates the wrapper. A nil fallback makes it a
// pass-through to primary.
func NewFallbackGenerator(primary, fallback Generator, logger *logging.Logger) *FallbackGenerator {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackGenerator{primary: primary, fallback: fallback, logger: logger}
}

// Generate returns the primary's reply, or the fallback's when the primary
// fails. When both fail the primary error is returned so callers classify
// the failure by the provider the user configured.
func (g *FallbackGenerator) Generate(ctx context.Context, history []Content, cfg Config) (string, error) {
	text, err := g.primary.Generate(ctx, history, cfg)
	if err == nil {
		return text, nil
	}
	if g.fallback == nil || ctx.Err() != nil {
		return "", err
	}

	g.logger.Warn("primary generator failed, attempting fallback", "error", err)

	text, fallbackErr := g.fallback.Generate(ctx, history, cfg)
	if fallbackErr != nil {
		g.logger.Error("fallback generator also failed",
			"primary_error", err,
			"fallback_error", fallbackErr,
		)
		return "", fmt.Errorf("%w (fallback: %v)", err, fallbackErr)
	}

	g.logger.Info("fallback generator succeeded after primary failure")
	return text, nil
}
