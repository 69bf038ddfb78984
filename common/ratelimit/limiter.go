package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Result contains the result of a rate limit check
type Result struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the limit resets (0 if allowed)
}

// Limiter provides per-client rate limiting using Redis + Lua
type Limiter struct {
	redis  *redis.Client
	script *redis.Script
	logger Logger
}

// NewLimiter creates a new rate limiter with embedded Lua script
func NewLimiter(redisClient *redis.Client, logger Logger) *Limiter {
	return &Limiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		logger: logger,
	}
}

// CheckClientLimit checks the fixed-window rate limit for a client identifier
func (l *Limiter) CheckClientLimit(ctx context.Context, clientID string, limit int64, windowSec int) (*Result, error) {
	key := fmt.Sprintf("rate_limit:client:%s", clientID)
	return l.checkLimit(ctx, key, limit, windowSec)
}

// checkLimit executes the rate limit Lua script atomically
func (l *Limiter) checkLimit(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	result, err := l.script.Run(ctx, l.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		l.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	retryAfter, _ := values[2].(int64)

	return &Result{
		Allowed:           allowed == 1,
		CurrentCount:      count,
		Limit:             limit,
		RetryAfterSeconds: retryAfter,
	}, nil
}
