// Package cache stores normalized entities and request pointers, and tells
// subscribers exactly which keys changed.
//
// # Backends
//
//   - MemoryCache: in-process, with per-entry TTL checked on read
//   - RedisCache: shared through Redis, with optional cross-process change
//     notifications (Watch) and a pluggable Codec (JSON or MessagePack)
//   - NoopCache: stores nothing
//
// # Subscriptions
//
// A Listener registered for a set of keys is called once per write that
// touches any of them, with every key that write changed:
//
//	l := cache.NewListener(func(keys []string) { fmt.Println(keys) })
//	unsubscribe := c.Subscribe(l, "users:1", "users:2")
//	_ = c.Merge(ctx, map[string]any{"users:1": u1, "photos:9": p9})
//	// prints [photos:9 users:1]
//	unsubscribe()
//
// # Manager
//
// Manager.Store writes a normalized response in one batch: every entity
// under "<type>:<id>", and for GET requests a pointer under RequestKey that
// records which entities answer the request, in the response's shape.
// Manager.Read walks that pointer back into a response.
package cache
