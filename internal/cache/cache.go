package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the cache backend could not serve the request
// (connectivity failure or timeout). Callers decide whether to fail open
// or closed; the cache never hides an outage behind a miss.
var ErrUnavailable = errors.New("cache: unavailable")

// Key prefixes shared between the security core and operations tooling.
// Keeping them in one place makes the keyspace auditable from redis-cli.
const (
	CaptchaKeyPrefix   = "captcha_codes:"
	LoginFailKeyPrefix = "pwd_err_cnt:"
	LoginLockKeyPrefix = "pwd_lock:"
)

// Cache is the key/value contract the security core relies on. Values are
// opaque strings with per-key TTLs. Incr must be atomic per key, and
// GetDel must consume the key in a single step; both invariants are load
// bearing for the lockout and captcha protocols.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// GetDel returns the value and removes the key atomically.
	GetDel(ctx context.Context, key string) (string, bool, error)
	// Incr increments the integer value at key by one, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// BuildKey joins a prefix and a key the way every component does it.
func BuildKey(prefix, key string) string {
	return prefix + key
}
