// Package health checks the stores a zwyx client depends on.
//
//   - CacheCheck: round-trips a probe key through a cache.Cache
//   - RedisCheck: pings a Redis connection
//   - Combine: folds several statuses into one
//
// A status is healthy, degraded or unhealthy:
//
//	status := health.Combine(
//	    health.CacheCheck(ctx, c),
//	    health.RedisCheck(ctx, redisCache),
//	)
//	if status.IsUnhealthy() {
//	    log.Fatal(status.Message)
//	}
package health
