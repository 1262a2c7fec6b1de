// Package config loads zwyx.yaml files: the entity definitions, the route
// table, and the settings of the cache backend, transport and logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ancyrweb/zwyx/cache"
	"github.com/ancyrweb/zwyx/normalizer"
	"github.com/ancyrweb/zwyx/schema"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNoop   = "noop"
)

// Cache policies, as accepted by the root package.
const (
	PolicyNetworkOnly = "network-only"
	PolicyCacheFirst  = "cache-first"
	PolicyCacheOnly   = "cache-only"
)

// Config represents a zwyx.yaml configuration file.
//
// Example:
//
//	entities:
//	  users:
//	    photo: photos
//	    friends: [users]
//	  photos:
//	    id: uuid
//	routes:
//	  /users/:id: users
//	  /users: [users]
//	cache:
//	  backend: redis
//	  ttl: 10m
//	  redis:
//	    url: redis://localhost:6379
type Config struct {
	Entities schema.Definitions `yaml:"entities"`

	// Routes keeps the file's order, which decides pattern precedence.
	Routes normalizer.Routes `yaml:"routes"`

	HTTP  *HTTPConfig  `yaml:"http,omitempty"`
	Cache *CacheConfig `yaml:"cache,omitempty"`
	Log   *LogConfig   `yaml:"log,omitempty"`
}

// HTTPConfig configures the HTTP link.
type HTTPConfig struct {
	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Timeout bounds one request. Format: Go duration string. Default: 30s
	Timeout string `yaml:"timeout,omitempty"`

	// PropagateTrace sends the W3C trace context with every request.
	PropagateTrace bool `yaml:"propagate_trace,omitempty"`
}

// GetTimeout parses the timeout string. Returns the default value if not set
// or invalid.
func (h *HTTPConfig) GetTimeout() time.Duration {
	if h == nil {
		return 30 * time.Second
	}
	return parseDuration(h.Timeout, 30*time.Second)
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is "memory", "redis" or "noop". Default: memory
	Backend string `yaml:"backend,omitempty"`

	// TTL applies to every stored key. Empty means entries never expire.
	TTL string `yaml:"ttl,omitempty"`

	// Policy is the default cache policy of Emit. Default: network-only
	Policy string `yaml:"policy,omitempty"`

	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// GetBackend returns the backend or the default value.
func (c *CacheConfig) GetBackend() string {
	if c == nil || c.Backend == "" {
		return BackendMemory
	}
	return strings.ToLower(c.Backend)
}

// GetTTL parses the TTL string. Zero means no expiry.
func (c *CacheConfig) GetTTL() time.Duration {
	if c == nil {
		return 0
	}
	return parseDuration(c.TTL, 0)
}

// GetPolicy returns the policy or the default value.
func (c *CacheConfig) GetPolicy() string {
	if c == nil || c.Policy == "" {
		return PolicyNetworkOnly
	}
	return strings.ToLower(c.Policy)
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace,omitempty"`
	Channel   string `yaml:"channel,omitempty"`

	// Codec is "json" or "msgpack". Default: json
	Codec string `yaml:"codec,omitempty"`

	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
	ReadTimeout    string `yaml:"read_timeout,omitempty"`
	WriteTimeout   string `yaml:"write_timeout,omitempty"`

	// Watch relays change notifications written by other processes.
	Watch bool `yaml:"watch,omitempty"`
}

// Options converts the configuration into cache.RedisOptions. Unset or
// invalid durations are left at zero so the cache defaults apply.
func (r *RedisConfig) Options(ttl time.Duration, logger *slog.Logger) (cache.RedisOptions, error) {
	if r == nil {
		r = &RedisConfig{}
	}
	codec, err := cache.CodecByName(r.Codec)
	if err != nil {
		return cache.RedisOptions{}, err
	}
	return cache.RedisOptions{
		URL:            r.URL,
		Namespace:      r.Namespace,
		Channel:        r.Channel,
		Codec:          codec,
		ConnectTimeout: parseDuration(r.ConnectTimeout, 0),
		ReadTimeout:    parseDuration(r.ReadTimeout, 0),
		WriteTimeout:   parseDuration(r.WriteTimeout, 0),
		DefaultTTL:     ttl,
		Logger:         logger,
	}, nil
}

// LogConfig configures the default logger.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error". Default: info
	Level string `yaml:"level,omitempty"`

	// Format is "text" or "json". Default: text
	Format string `yaml:"format,omitempty"`
}

// GetLevel returns the slog level or the default value.
func (l *LogConfig) GetLevel() slog.Level {
	if l == nil || l.Level == "" {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Logger builds a logger writing to w.
func (l *LogConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.GetLevel()}
	if l != nil && strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Validate checks the settings that cannot fall back to a default.
func (c *Config) Validate() error {
	var errs []error

	if c.Cache != nil {
		switch c.Cache.GetBackend() {
		case BackendMemory, BackendNoop:
		case BackendRedis:
			if c.Cache.Redis == nil || c.Cache.Redis.URL == "" {
				errs = append(errs, errors.New("cache.redis.url is required for the redis backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
		}

		switch c.Cache.GetPolicy() {
		case PolicyNetworkOnly, PolicyCacheFirst, PolicyCacheOnly:
		default:
			errs = append(errs, fmt.Errorf("unknown cache policy %q", c.Cache.Policy))
		}

		errs = append(errs, checkDuration("cache.ttl", c.Cache.TTL))
		if r := c.Cache.Redis; r != nil {
			if _, err := cache.CodecByName(r.Codec); err != nil {
				errs = append(errs, err)
			}
			errs = append(errs,
				checkDuration("cache.redis.connect_timeout", r.ConnectTimeout),
				checkDuration("cache.redis.read_timeout", r.ReadTimeout),
				checkDuration("cache.redis.write_timeout", r.WriteTimeout),
			)
		}
	}

	if c.HTTP != nil {
		errs = append(errs, checkDuration("http.timeout", c.HTTP.Timeout))
	}

	if c.Log != nil {
		var level slog.Level
		if c.Log.Level != "" {
			if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
				errs = append(errs, fmt.Errorf("log.level: %w", err))
			}
		}
		switch strings.ToLower(c.Log.Format) {
		case "", "text", "json":
		default:
			errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return zwyxerr.Configuration("config.Validate", fmt.Errorf("%w: %w", zwyxerr.ErrInvalidConfig, err))
	}
	return nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, zwyxerr.Configuration("config.Parse", fmt.Errorf("failed to parse config: %w", err))
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Load reads and parses a zwyx.yaml file from the given path.
// If the path is a directory, it looks for zwyx.yaml or zwyx.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, zwyxerr.Configuration("config.Load", fmt.Errorf("failed to stat path: %w", err))
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range []string{"zwyx.yaml", "zwyx.yml"} {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, zwyxerr.Configuration("config.Load", fmt.Errorf("no zwyx.yaml or zwyx.yml found in %s", path))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, zwyxerr.Configuration("config.Load", fmt.Errorf("failed to read config file: %w", err))
	}
	return Parse(data)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func checkDuration(field, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return fmt.Errorf("%s: negative duration %s", field, s)
	}
	return nil
}
