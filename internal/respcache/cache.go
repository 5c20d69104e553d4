// Package respcache stores successful responses keyed by a digest of the
// full call. Entries expire after their TTL; an expired entry is treated
// as absent. Because the key encodes the entire call, concurrent writers
// for one key store equivalent content and the last write wins.
package respcache

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aperture-cli/aperture/internal/model"
)

// Entry is a cached response.
type Entry struct {
	Status    int         `json:"status"`
	Headers   http.Header `json:"headers"`
	Body      []byte      `json:"body"`
	StoredAt  time.Time   `json:"stored_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Cache is a response store.
//
// Contract:
// - Get never returns an expired entry.
// - Set with ttl <= 0 stores nothing.
// - Delete of a missing key is not an error.
// - Implementations are safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DefaultTTL is the time-to-live used when Config.TTL is unset.
const DefaultTTL = 5 * time.Minute

// DefaultMaxEntries bounds a cache store when no limit is configured.
const DefaultMaxEntries = 1000

// Config controls whether and how a call uses the cache.
type Config struct {
	Enabled bool
	TTL     time.Duration
	// MaxEntries bounds the cache store; zero means DefaultMaxEntries.
	MaxEntries int
	// AllowMutating lets non-safe methods use the cache when the call
	// carries an idempotency key.
	AllowMutating bool
	// ExcludeTags bypasses the cache for operations with any of these tags.
	ExcludeTags []string
}

// EffectiveTTL returns TTL or DefaultTTL when unset.
func (c Config) EffectiveTTL() time.Duration {
	if c.TTL <= 0 {
		return DefaultTTL
	}
	return c.TTL
}

// Eligible reports whether a call to cmd may read or write the cache.
// Safe methods are cacheable. Mutating methods are cacheable only with
// AllowMutating and an idempotency key. Excluded tags always bypass.
func (c Config) Eligible(cmd *model.CachedCommand, idempotencyKey string) bool {
	if !c.Enabled || cmd == nil {
		return false
	}
	for _, tag := range cmd.Tags {
		if slices.ContainsFunc(c.ExcludeTags, func(ex string) bool { return strings.EqualFold(ex, tag) }) {
			return false
		}
	}
	switch strings.ToUpper(cmd.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return c.AllowMutating && idempotencyKey != ""
	}
}

// Storable reports whether a response with status may be cached.
func Storable(status int) bool {
	return status >= 200 && status < 300
}

// Clock returns the current time.
type Clock func() time.Time
