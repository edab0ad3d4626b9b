package discount

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const automaticCacheKey = "discounts:automatic:v1"

// Guard decides whether the cache may be consulted and learns from each outcome.
type Guard interface {
	Allow() bool
	Report(err error)
}

// CachedFinder keeps the active automatic discount list in Redis for a short TTL.
// Code lookups and usage counts are never cached.
type CachedFinder struct {
	Next   Finder
	Client *redis.Client
	TTL    time.Duration
	Prefix string
	// OnError receives cache failures; lookups fall through to Next regardless.
	OnError func(error)
	// Guard, when set, skips Redis while it is failing.
	Guard Guard
}

// FindActiveByCode delegates to the wrapped finder.
func (c *CachedFinder) FindActiveByCode(ctx context.Context, code string) (Discount, error) {
	return c.Next.FindActiveByCode(ctx, code)
}

// ListActiveAutomatic serves the list from Redis when present.
func (c *CachedFinder) ListActiveAutomatic(ctx context.Context) ([]Discount, error) {
	if c.Client == nil || c.TTL <= 0 || (c.Guard != nil && !c.Guard.Allow()) {
		return c.Next.ListActiveAutomatic(ctx)
	}
	key := c.key()
	data, err := c.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		c.guard(nil)
		var cached []Discount
		uerr := json.Unmarshal(data, &cached)
		if uerr == nil {
			return cached, nil
		}
		c.report(uerr)
	case errors.Is(err, redis.Nil):
		// judged by the write below
	default:
		c.guard(err)
		c.report(err)
		return c.Next.ListActiveAutomatic(ctx)
	}

	list, err := c.Next.ListActiveAutomatic(ctx)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(list); err == nil {
		err := c.Client.Set(ctx, key, encoded, c.TTL).Err()
		c.guard(err)
		if err != nil {
			c.report(err)
		}
	}
	return list, nil
}

// Invalidate drops the cached automatic list.
func (c *CachedFinder) Invalidate(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Del(ctx, c.key()).Err()
}

func (c *CachedFinder) key() string {
	if c.Prefix == "" {
		return automaticCacheKey
	}
	return c.Prefix + ":" + automaticCacheKey
}

func (c *CachedFinder) guard(err error) {
	if c.Guard != nil {
		c.Guard.Report(err)
	}
}

func (c *CachedFinder) report(err error) {
	if c.OnError != nil && err != nil {
		c.OnError(err)
	}
}
