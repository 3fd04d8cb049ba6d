package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T, now *time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService("unit-test-secret", "carehome-test", 7*24*time.Hour, func() time.Time { return *now })
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestTokenIssueAndParseRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, &now)

	token, expiresAt, err := svc.Issue("acc-42", "zhangwei", []string{"nurse", "admin", "nurse"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := now.Add(7 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expiresAt=%v, want %v", expiresAt, want)
	}

	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "acc-42" {
		t.Fatalf("subject=%q", claims.Subject)
	}
	if claims.Username != "zhangwei" {
		t.Fatalf("username=%q", claims.Username)
	}
	if len(claims.Roles) != 2 {
		t.Fatalf("expected deduplicated roles, got %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
}

func TestTokenExpiredIsDistinctFromTampered(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, &now)

	token, _, err := svc.Issue("acc-1", "lihua", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(7*24*time.Hour + time.Minute)
	if _, err := svc.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenSignatureInvalid(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, &now)

	token, _, err := svc.Issue("acc-1", "lihua", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.Parse(tampered); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}

	other, err := NewTokenService("a-different-secret", "carehome-test", time.Hour, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	if _, err := other.Parse(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature for wrong secret, got %v", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, &now)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := svc.Parse(token); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Parse(%q): expected ErrTokenMalformed, got %v", token, err)
		}
	}
}

func TestTokenWrongIssuerRejected(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	issuerA, err := NewTokenService("unit-test-secret", "service-a", time.Hour, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	issuerB, err := NewTokenService("unit-test-secret", "service-b", time.Hour, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, _, err := issuerA.Issue("acc-1", "lihua", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuerB.Parse(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for foreign issuer, got %v", err)
	}
}
