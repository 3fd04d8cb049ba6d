package auth

import (
	"context"
	"strings"
	"time"

	"carehome.org/internal/cache"
)

const (
	defaultMaxAttempts  = 5
	defaultLockDuration = 10 * time.Minute
)

// LoginGovernor throttles brute-force attempts per account. Consecutive
// failures are counted under pwd_err_cnt:<username>; reaching the
// threshold plants a lock marker under pwd_lock:<username> for the lock
// window. Both entries carry TTLs no longer than their logical meaning,
// so stale state decays even if an explicit clear is skipped. The cache's
// atomic increment is the only synchronization: two concurrent failures
// may both observe the pre-threshold count and lock one attempt early,
// which is the safe direction.
type LoginGovernor struct {
	cache        cache.Cache
	maxAttempts  int64
	lockDuration time.Duration
}

func NewLoginGovernor(c cache.Cache, maxAttempts int, lockDuration time.Duration) *LoginGovernor {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if lockDuration <= 0 {
		lockDuration = defaultLockDuration
	}
	return &LoginGovernor{cache: c, maxAttempts: int64(maxAttempts), lockDuration: lockDuration}
}

// Check rejects the attempt with ErrAccountLocked while a confirmed lock
// is in place. An unreadable lock state does not block the attempt: a
// cache outage must not turn into a total login outage, and the
// credential check still stands between the caller and a session.
func (g *LoginGovernor) Check(ctx context.Context, username string) error {
	locked, err := g.cache.Exists(ctx, g.lockKey(username))
	if err != nil {
		return nil
	}
	if locked {
		return ErrAccountLocked
	}
	return nil
}

// RecordFailure registers a credential failure and reports whether it
// tripped the lock. The counter TTL is refreshed to the lock window on
// every failure; once the threshold is reached the counter is replaced by
// the lock marker.
func (g *LoginGovernor) RecordFailure(ctx context.Context, username string) (bool, error) {
	cntKey := g.counterKey(username)
	count, err := g.cache.Incr(ctx, cntKey)
	if err != nil {
		return false, err
	}
	if count >= g.maxAttempts {
		if err := g.cache.Set(ctx, g.lockKey(username), "1", g.lockDuration); err != nil {
			return false, err
		}
		_ = g.cache.Delete(ctx, cntKey)
		return true, nil
	}
	if err := g.cache.Expire(ctx, cntKey, g.lockDuration); err != nil {
		return false, err
	}
	return false, nil
}

// Reset clears all throttling state after a successful login.
func (g *LoginGovernor) Reset(ctx context.Context, username string) error {
	if err := g.cache.Delete(ctx, g.counterKey(username)); err != nil {
		return err
	}
	return g.cache.Delete(ctx, g.lockKey(username))
}

func (g *LoginGovernor) counterKey(username string) string {
	return cache.BuildKey(cache.LoginFailKeyPrefix, strings.ToLower(username))
}

func (g *LoginGovernor) lockKey(username string) string {
	return cache.BuildKey(cache.LoginLockKeyPrefix, strings.ToLower(username))
}
