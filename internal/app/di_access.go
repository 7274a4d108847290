package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/tierguard/internal/access"
	"github.com/allisson/tierguard/internal/ratelimit"
)

// Rate limit backends accepted by RATE_LIMIT_BACKEND.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// redisKeyPrefix namespaces the rate limit buckets in a shared Redis.
const redisKeyPrefix = "tierguard:rl:"

// RedisClient returns the Redis client used by the shared rate limiter.
func (c *Container) RedisClient() *redis.Client {
	c.redisClientInit.Do(func() {
		c.redisClient = redis.NewClient(&redis.Options{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})
	})
	return c.redisClient
}

// Limiter returns the tier rate limiter selected by configuration.
func (c *Container) Limiter() (ratelimit.Limiter, error) {
	var err error
	c.limiterInit.Do(func() {
		c.limiter, err = c.initLimiter()
		if err != nil {
			c.setInitError("limiter", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("limiter"); storedErr != nil {
		return nil, storedErr
	}
	return c.limiter, nil
}

// Evaluator returns the access evaluator used by the request middleware.
func (c *Container) Evaluator() (access.Evaluator, error) {
	var err error
	c.evaluatorInit.Do(func() {
		c.evaluator, err = c.initEvaluator()
		if err != nil {
			c.setInitError("evaluator", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("evaluator"); storedErr != nil {
		return nil, storedErr
	}
	return c.evaluator, nil
}

func (c *Container) initLimiter() (ratelimit.Limiter, error) {
	if !c.config.RateLimitEnabled {
		return ratelimit.NoopLimiter{}, nil
	}

	switch c.config.RateLimitBackend {
	case "", RateLimitBackendMemory:
		return ratelimit.NewMemoryLimiter(c.config.RateLimitWindow, c.Clock(), c.Logger()), nil
	case RateLimitBackendRedis:
		return ratelimit.NewRedisLimiter(c.RedisClient(), redisKeyPrefix, c.config.RateLimitWindow, c.Clock()), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", c.config.RateLimitBackend)
	}
}

func (c *Container) initEvaluator() (access.Evaluator, error) {
	codec, err := c.CredentialCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential codec for evaluator: %w", err)
	}

	index, err := c.RevocationIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to get revocation index for evaluator: %w", err)
	}

	tiers, err := c.EntitlementUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement use case for evaluator: %w", err)
	}

	limiter, err := c.Limiter()
	if err != nil {
		return nil, fmt.Errorf("failed to get limiter for evaluator: %w", err)
	}

	evaluator := access.NewEvaluator(codec, index, tiers, limiter, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for evaluator: %w", err)
		}
		return access.NewEvaluatorWithMetrics(evaluator, businessMetrics), nil
	}

	return evaluator, nil
}
