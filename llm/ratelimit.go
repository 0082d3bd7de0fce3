package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how fast the engine may call the model provider.
type RateLimitConfig struct {
	// RequestsPerSecond across all agents sharing the client.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`

	// Burst allows short spikes above the sustained rate.
	Burst int `yaml:"burst" json:"burst"`
}

// DefaultRateLimitConfig returns the default provider politeness settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// RateLimitedClient wraps a Client with a token-bucket limiter so that
// chained turns and debate loops cannot hammer the provider.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimited wraps inner with the given limits.
func NewRateLimited(inner Client, config RateLimitConfig, logger *zap.Logger) *RateLimitedClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RequestsPerSecond <= 0 {
		config = DefaultRateLimitConfig()
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:  logger.With(zap.String("component", "llm_ratelimit")),
	}
}

// Generate waits for limiter capacity, then delegates to the inner client.
func (c *RateLimitedClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.inner.Generate(ctx, req)
}
