package zwyx

import (
	"fmt"
	"strings"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

// CachePolicy decides whether Emit reads from the cache, the network, or
// both.
type CachePolicy string

const (
	// NetworkOnly always calls the chain and caches the response.
	NetworkOnly CachePolicy = "network-only"

	// CacheFirst answers GET requests from the cache when the pointer and
	// its top-level entities are present, and falls back to the network.
	CacheFirst CachePolicy = "cache-first"

	// CacheOnly never calls the chain. A miss is an ErrNotFound error.
	CacheOnly CachePolicy = "cache-only"
)

// ParseCachePolicy parses "network-only", "cache-first" or "cache-only".
// The empty string is NetworkOnly.
func ParseCachePolicy(s string) (CachePolicy, error) {
	switch p := CachePolicy(strings.ToLower(s)); p {
	case "":
		return NetworkOnly, nil
	case NetworkOnly, CacheFirst, CacheOnly:
		return p, nil
	}
	return "", zwyxerr.Configuration("zwyx.ParseCachePolicy",
		fmt.Errorf("%w: unknown cache policy %q", zwyxerr.ErrInvalidConfig, s))
}

func (p CachePolicy) String() string {
	if p == "" {
		return string(NetworkOnly)
	}
	return string(p)
}

func (p CachePolicy) readsCache() bool {
	return p == CacheFirst || p == CacheOnly
}
