package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultAccessTTL = 7 * 24 * time.Hour

// Claims are the JWT claims carried by a session token.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates stateless HS256 session tokens. The
// secret is fixed at construction and never leaves the process.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService constructs the service. The secret must be non-empty;
// issuer and ttl fall back to sensible defaults.
func NewTokenService(secret, issuer string, ttl time.Duration, now func() time.Time) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if issuer == "" {
		issuer = "carehome"
	}
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl, now: now}, nil
}

// TTL returns the configured token lifetime.
func (t *TokenService) TTL() time.Duration { return t.ttl }

// Issue signs a token for the account with subject, issued-at and expiry
// claims.
func (t *TokenService) Issue(accountID, username string, roles []string) (string, time.Time, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", time.Time{}, errors.New("auth: account id is required")
	}
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		Username: username,
		Roles:    dedupeRoleKeys(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature and expiry and returns the claims. Failures
// come back as exactly one of ErrTokenExpired, ErrTokenSignature or
// ErrTokenMalformed; expiry wins over everything else so a stale but
// untampered token reads as "log in again".
func (t *TokenService) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(tok *jwt.Token) (any, error) {
			if tok.Method != jwt.SigningMethodHS256 {
				return nil, ErrTokenSignature
			}
			return t.secret, nil
		},
		jwt.WithTimeFunc(func() time.Time { return t.now().UTC() }),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrTokenSignature):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}
	claims.Roles = dedupeRoleKeys(claims.Roles)
	return claims, nil
}

func dedupeRoleKeys(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
