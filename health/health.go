package health

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/ancyrweb/zwyx/cache"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

const probePrefix = "zwyx:health:"

// CacheCheck writes a probe key, reads it back and removes it. A cache that
// accepts the write but does not return the value (cache.NoopCache) is
// degraded; any error is unhealthy.
func CacheCheck(ctx context.Context, c cache.Cache) Status {
	if c == nil {
		return Unhealthy("no cache configured", nil)
	}

	key := probePrefix + uuid.NewString()
	want := map[string]any{"probe": key}
	start := time.Now()

	if err := c.Set(ctx, key, want, cache.WithTTL(time.Minute)); err != nil {
		return Unhealthy("cache write failed", map[string]any{"key": key, "error": err.Error()})
	}
	defer func() { _ = c.Remove(context.WithoutCancel(ctx), key) }()

	got, err := c.Get(ctx, key)
	if errors.Is(err, zwyxerr.ErrNotFound) {
		return Degraded("cache does not retain values", map[string]any{"key": key})
	}
	if err != nil {
		return Unhealthy("cache read failed", map[string]any{"key": key, "error": err.Error()})
	}
	if !reflect.DeepEqual(got, want) {
		return Unhealthy("cache returned a different value", map[string]any{"key": key, "value": got})
	}

	return Healthy(fmt.Sprintf("cache round trip in %s", time.Since(start).Round(time.Microsecond)))
}

// Pinger is satisfied by *cache.RedisCache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisCheck pings Redis.
func RedisCheck(ctx context.Context, p Pinger) Status {
	if p == nil {
		return Unhealthy("no redis connection configured", nil)
	}
	if err := p.Ping(ctx); err != nil {
		return Unhealthy("redis ping failed", map[string]any{"error": err.Error()})
	}
	return Healthy("redis reachable")
}

// Combine folds checks into one status: unhealthy if any check is,
// otherwise degraded if any check is, otherwise healthy.
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks provided")
	}

	var unhealthy, degraded []string
	for _, check := range checks {
		msg := check.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch check.Status {
		case StatusUnhealthy:
			unhealthy = append(unhealthy, msg)
		case StatusDegraded:
			degraded = append(degraded, msg)
		}
	}

	details := map[string]any{
		"total":     len(checks),
		"unhealthy": len(unhealthy),
		"degraded":  len(degraded),
		"healthy":   len(checks) - len(unhealthy) - len(degraded),
	}
	switch {
	case len(unhealthy) > 0:
		details["failed_checks"] = unhealthy
		return Unhealthy(fmt.Sprintf("%d check(s) failed", len(unhealthy)), details)
	case len(degraded) > 0:
		details["degraded_checks"] = degraded
		return Degraded(fmt.Sprintf("%d check(s) degraded", len(degraded)), details)
	}
	return Healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
