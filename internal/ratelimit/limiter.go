package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RedisLimiter is a fixed-window limiter shared across API instances through Redis.
type RedisLimiter struct {
	lim *limiter.Limiter
}

// NewRedisLimiter builds a limiter from a formatted rate such as "120-M".
func NewRedisLimiter(client *redis.Client, prefix, rate string) (*RedisLimiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("create limiter store: %w", err)
	}
	return &RedisLimiter{lim: limiter.New(store, parsed, limiter.WithTrustForwardHeader(true))}, nil
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := l.lim.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   time.Unix(res.Reset, 0),
	}, nil
}

// KeyFunc returns the customer id when authenticated, otherwise the client IP.
func (l *RedisLimiter) KeyFunc(r *http.Request) string {
	if id, ok := common.CustomerID(r.Context()); ok {
		return "customer:" + id.String()
	}
	return "ip:" + l.lim.GetIPKey(r)
}
