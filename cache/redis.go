package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

const (
	defaultNamespace = "zwyx:"
	scanBatch        = 100
)

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// Namespace prefixes every key. Defaults to "zwyx:".
	Namespace string

	// Channel carries change notifications between processes sharing the
	// namespace. Defaults to Namespace + "changes".
	Channel string

	// Codec serializes values. Defaults to JSONCodec.
	Codec Codec

	// DefaultTTL applies to writes without WithTTL.
	DefaultTTL time.Duration

	Logger *slog.Logger
}

func (o *RedisOptions) applyDefaults() {
	if o.URL == "" {
		o.URL = "redis://localhost:6379"
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 30 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Namespace == "" {
		o.Namespace = defaultNamespace
	}
	if o.Channel == "" {
		o.Channel = o.Namespace + "changes"
	}
	if o.Codec == nil {
		o.Codec = JSONCodec{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// RedisCache is a Cache stored in Redis. Writes notify local subscribers
// directly; subscribers in other processes are reached through Watch.
type RedisCache struct {
	client *redis.Client
	opts   RedisOptions
	id     string
	hub    *Hub
	logger *slog.Logger
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(opts RedisOptions) (*RedisCache, error) {
	opts.applyDefaults()

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, zwyxerr.Configuration("cache.NewRedisCache", fmt.Errorf("failed to parse Redis URL: %w", err))
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, zwyxerr.Transport("cache.NewRedisCache", fmt.Errorf("failed to connect to Redis: %w", err))
	}

	return newRedisCache(client, opts), nil
}

// NewRedisCacheFromClient wraps an existing client. Connection fields of
// opts are ignored.
func NewRedisCacheFromClient(client *redis.Client, opts RedisOptions) *RedisCache {
	opts.applyDefaults()
	return newRedisCache(client, opts)
}

func newRedisCache(client *redis.Client, opts RedisOptions) *RedisCache {
	id := uuid.NewString()
	return &RedisCache{
		client: client,
		opts:   opts,
		id:     id,
		hub:    NewHub(),
		logger: opts.Logger.With("component", "redis_cache", "instance", id),
	}
}

func (c *RedisCache) key(k string) string {
	return c.opts.Namespace + k
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	return c.Merge(ctx, map[string]any{key: value}, opts...)
}

// Merge writes values in one MULTI/EXEC transaction.
func (c *RedisCache) Merge(ctx context.Context, values map[string]any, opts ...SetOption) error {
	if len(values) == 0 {
		return nil
	}

	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		if k == "" {
			return zwyxerr.Validation("RedisCache.Merge", zwyxerr.ErrInvalidKey)
		}
		data, err := c.opts.Codec.Marshal(v)
		if err != nil {
			return zwyxerr.Validation("RedisCache.Merge", fmt.Errorf("failed to encode %q: %w", k, err))
		}
		encoded[k] = data
	}

	ttl := resolveTTL(c.opts.DefaultTTL, opts)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, data := range encoded {
			pipe.Set(ctx, c.key(k), data, ttl)
		}
		return nil
	})
	if err != nil {
		return zwyxerr.Transport("RedisCache.Merge", err)
	}

	keys := sortedKeys(values)
	c.hub.Notify(keys)
	c.publish(ctx, keys)
	return nil
}

type changeMessage struct {
	Origin string   `json:"origin"`
	Keys   []string `json:"keys"`
}

func (c *RedisCache) publish(ctx context.Context, keys []string) {
	data, err := json.Marshal(changeMessage{Origin: c.id, Keys: keys})
	if err != nil {
		c.logger.Warn("failed to encode change message", "error", err)
		return
	}
	if err := c.client.Publish(ctx, c.opts.Channel, data).Err(); err != nil {
		c.logger.Warn("failed to publish change message", "channel", c.opts.Channel, "error", err)
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (any, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, zwyxerr.NotFound("RedisCache.Get", key)
		}
		return nil, zwyxerr.Transport("RedisCache.Get", err)
	}

	v, err := c.opts.Codec.Unmarshal(data)
	if err != nil {
		return nil, zwyxerr.Internal("RedisCache.Get", fmt.Errorf("failed to decode %q: %w", key, err))
	}
	return v, nil
}

func (c *RedisCache) Remove(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return zwyxerr.Transport("RedisCache.Remove", err)
	}
	return nil
}

// Clear deletes every key in the namespace.
func (c *RedisCache) Clear(ctx context.Context) error {
	return c.scan(ctx, func(keys []string) error {
		return c.client.Del(ctx, keys...).Err()
	})
}

// All returns every entry in the namespace.
func (c *RedisCache) All(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any)
	err := c.scan(ctx, func(keys []string) error {
		values, err := c.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, raw := range values {
			s, ok := raw.(string)
			if !ok {
				// expired between SCAN and MGET
				continue
			}
			v, err := c.opts.Codec.Unmarshal([]byte(s))
			if err != nil {
				return fmt.Errorf("failed to decode %q: %w", keys[i], err)
			}
			out[strings.TrimPrefix(keys[i], c.opts.Namespace)] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scan calls fn with batches of namespaced keys.
func (c *RedisCache) scan(ctx context.Context, fn func(keys []string) error) error {
	iter := c.client.Scan(ctx, 0, c.opts.Namespace+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := fn(batch); err != nil {
				return zwyxerr.Transport("RedisCache.scan", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return zwyxerr.Transport("RedisCache.scan", err)
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return zwyxerr.Transport("RedisCache.scan", err)
		}
	}
	return nil
}

func (c *RedisCache) Subscribe(l *Listener, keys ...string) func() {
	return c.hub.Subscribe(l, keys...)
}

// Watch subscribes to change messages published by other RedisCache
// instances on the same channel and forwards them to local listeners. It
// returns once the subscription is confirmed; forwarding stops when ctx is
// done.
func (c *RedisCache) Watch(ctx context.Context) error {
	pubsub := c.client.Subscribe(ctx, c.opts.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return zwyxerr.Transport("RedisCache.Watch", fmt.Errorf("failed to subscribe to channel %s: %w", c.opts.Channel, err))
	}

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var change changeMessage
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					c.logger.Warn("dropping malformed change message", "error", err)
					continue
				}
				if change.Origin == c.id {
					continue
				}
				c.hub.Notify(change.Keys)
			}
		}
	}()
	return nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the underlying Redis client.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
