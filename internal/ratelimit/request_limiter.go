package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bolla-network/turion/internal/config"
	"github.com/bolla-network/turion/internal/plan"
)

const keyRequestBucket = "ratelimit:req:%s"

// RequestLimiter enforces the per-plan requests-per-minute ceiling on the
// data-plane ingest endpoint. When redis is not configured the limiter is
// disabled and every request passes.
type RequestLimiter struct {
	enabled bool
	bucket  *TokenBucket
	log     *zap.Logger
}

func NewRequestLimiter(cfg config.Config, log *zap.Logger) *RequestLimiter {
	logger := log.Named("ratelimit")

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		logger.Warn("redis not configured, request rate limiting disabled")
		return &RequestLimiter{enabled: false, log: logger}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
	})

	return &RequestLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		log:     logger,
	}
}

func (l *RequestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one request slot for the user under the plan's RPM budget.
// Redis failures degrade open: serving a request beyond the ceiling beats
// failing every request while redis is down.
func (l *RequestLimiter) Allow(ctx context.Context, userID string, p plan.Plan) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true, Limit: p.RequestsPerMinute, Remaining: p.RequestsPerMinute}, nil
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyRequestBucket, strings.TrimSpace(userID)), requestRate(p), p.RequestsPerMinute)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request",
			zap.String("user_id", userID),
			zap.Error(err))
		return &Result{Allowed: true, Limit: p.RequestsPerMinute, Remaining: 0, RetryAfter: time.Second}, nil
	}
	return res, nil
}

// requestRate converts the plan's per-minute budget to the bucket's
// tokens-per-second refill rate.
func requestRate(p plan.Plan) float64 {
	return float64(p.RequestsPerMinute) / 60.0
}
