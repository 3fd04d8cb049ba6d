package auth

import (
	"errors"

	"carehome.org/internal/cache"
)

var (
	// Login failures. All four map to the same user-visible message so the
	// response body never confirms whether a username exists; the stable
	// code returned by ErrorCode stays precise for clients and audit logs.
	ErrCaptchaInvalid  = errors.New("auth: captcha invalid")
	ErrAccountLocked   = errors.New("auth: account locked")
	ErrBadCredentials  = errors.New("auth: bad credentials")
	ErrAccountDisabled = errors.New("auth: account disabled")

	// Token validation failures. Callers must be able to tell "log in
	// again" (expired) apart from a tampered token.
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenSignature = errors.New("auth: token signature invalid")

	ErrNotFound = errors.New("auth: not found")
)

// ErrCacheUnavailable marks transient cache infrastructure failures.
// Re-exported so facade callers do not import the cache package.
var ErrCacheUnavailable = cache.ErrUnavailable

// ErrorCode returns the stable machine-readable code for an auth error,
// or "" for errors outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrCaptchaInvalid):
		return "captcha_invalid"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrBadCredentials):
		return "bad_credentials"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, ErrTokenSignature):
		return "token_signature_invalid"
	case errors.Is(err, ErrCacheUnavailable):
		return "cache_unavailable"
	default:
		return ""
	}
}
