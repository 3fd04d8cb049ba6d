package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"carehome.org/internal/cache"
)

// Service is the authorization facade request handlers talk to. It
// composes the captcha manager, the login attempt governor, the
// credential verifier, the token service and the data-scope resolver.
// All configuration is fixed at construction; the service holds no
// mutable state and is safe for concurrent use.
type Service struct {
	store    Store
	cache    cache.Cache
	captcha  *CaptchaManager
	governor *LoginGovernor
	tokens   *TokenService
	scopes   *ScopeResolver

	now       func() time.Time
	onLockout func(ctx context.Context, username string)
}

// ServiceOption configures Service behavior.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	issuer       string
	accessTTL    time.Duration
	captchaTTL   time.Duration
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
	onLockout    func(ctx context.Context, username string)
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(c *serviceConfig) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(c *serviceConfig) { c.issuer = strings.TrimSpace(issuer) }
}

// WithAccessTTL configures session token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithCaptchaTTL configures captcha challenge lifetime.
func WithCaptchaTTL(ttl time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		if ttl > 0 {
			c.captchaTTL = ttl
		}
	}
}

// WithMaxAttempts configures the failure threshold before lockout.
func WithMaxAttempts(n int) ServiceOption {
	return func(c *serviceConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithLockDuration configures the lockout window.
func WithLockDuration(d time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		if d > 0 {
			c.lockDuration = d
		}
	}
}

// WithLockoutHook installs a callback fired when an account transitions
// into the locked state. Wired to metrics and audit logging at bootstrap.
func WithLockoutHook(fn func(ctx context.Context, username string)) ServiceOption {
	return func(c *serviceConfig) { c.onLockout = fn }
}

// NewService constructs the facade. The token secret is the only
// process-wide secret; it is passed in explicitly and never read from the
// environment here.
func NewService(store Store, c cache.Cache, tokenSecret string, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if c == nil {
		return nil, errors.New("auth: cache is required")
	}
	cfg := serviceConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	tokens, err := NewTokenService(tokenSecret, cfg.issuer, cfg.accessTTL, cfg.now)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:     store,
		cache:     c,
		captcha:   NewCaptchaManager(c, cfg.captchaTTL),
		governor:  NewLoginGovernor(c, cfg.maxAttempts, cfg.lockDuration),
		tokens:    tokens,
		scopes:    NewScopeResolver(store),
		now:       cfg.now,
		onLockout: cfg.onLockout,
	}, nil
}

// IssueCaptcha hands out a fresh challenge for the login form.
func (s *Service) IssueCaptcha(ctx context.Context) (Challenge, error) {
	return s.captcha.Issue(ctx)
}

// TokenTTL returns the configured session token lifetime.
func (s *Service) TokenTTL() time.Duration { return s.tokens.TTL() }

// LoginRequest carries the credentials and the captcha round-trip of a
// login attempt.
type LoginRequest struct {
	Username  string
	Password  string
	Captcha   string
	CaptchaID string
}

// Login authenticates a user. Check order: captcha first (cheapest, and
// keeps credential stuffing from driving up hashing cost), then lockout
// state, then the credential hash, then account status. On success the
// failure counter is cleared and a token minted. The plaintext password
// never reaches a log or an error message.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return Session{}, ErrBadCredentials
	}

	if err := s.captcha.Verify(ctx, req.CaptchaID, req.Captcha); err != nil {
		return Session{}, err
	}
	if err := s.governor.Check(ctx, username); err != nil {
		return Session{}, err
	}

	account, err := s.store.FindAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.recordFailure(ctx, username)
			return Session{}, ErrBadCredentials
		}
		return Session{}, err
	}

	match, err := VerifyPassword(account.PasswordHash, req.Password)
	if err != nil {
		return Session{}, err
	}
	if !match {
		s.recordFailure(ctx, username)
		return Session{}, ErrBadCredentials
	}

	if account.Disabled() {
		return Session{}, ErrAccountDisabled
	}

	if err := s.governor.Reset(ctx, username); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		return Session{}, err
	}

	roles, err := s.store.RolesForAccount(ctx, account.ID)
	if err != nil {
		return Session{}, err
	}
	keys := make([]string, 0, len(roles))
	for _, role := range roles {
		if role.Status == StatusNormal {
			keys = append(keys, role.Key)
		}
	}

	token, expiresAt, err := s.tokens.Issue(account.ID, account.Username, keys)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccountID: account.ID,
		Username:  account.Username,
		RoleKeys:  keys,
		Token:     token,
		IssuedAt:  s.now().UTC(),
		ExpiresAt: expiresAt,
	}, nil
}

// recordFailure feeds the governor after a failed credential check. A
// cache outage here is swallowed: throttling degrades, logins continue.
func (s *Service) recordFailure(ctx context.Context, username string) {
	locked, err := s.governor.RecordFailure(ctx, username)
	if err != nil {
		return
	}
	if locked && s.onLockout != nil {
		s.onLockout(ctx, username)
	}
}

// Authorize validates a bearer token and returns the session it carries.
// Account status is not re-checked against the store: a disabled
// account's outstanding tokens stay valid until expiry.
func (s *Service) Authorize(ctx context.Context, token string) (Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccountID: claims.Subject,
		Username:  claims.Username,
		RoleKeys:  claims.Roles,
		Token:     token,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ResolveScope computes the data-scope filter for the session. Roles and
// the department come from the store at call time, so scope edits apply
// to outstanding sessions immediately.
func (s *Service) ResolveScope(ctx context.Context, session Session) (ScopeFilter, error) {
	account, err := s.store.FindAccountByUsername(ctx, session.Username)
	if err != nil {
		return ScopeFilter{}, err
	}
	roles, err := s.store.RolesForAccount(ctx, account.ID)
	if err != nil {
		return ScopeFilter{}, err
	}
	return s.scopes.Resolve(ctx, account, roles)
}

// ScopeFilter renders the session's data-scope restriction as a SQL
// predicate against the given table alias.
func (s *Service) ScopeFilter(ctx context.Context, session Session, tableAlias string) (string, error) {
	filter, err := s.ResolveScope(ctx, session)
	if err != nil {
		return "", err
	}
	return filter.Predicate(tableAlias), nil
}
