package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestProtectedPathRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/profile", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMalformedTokenRejectedWithCode(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/profile", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "token_malformed" {
		t.Fatalf("code=%q", resp.Code)
	}
}

func TestTamperedTokenRejectedWithCode(t *testing.T) {
	f := newAPIFixture(t)
	token := loginToken(t, f)

	suffix := "AA"
	if token[len(token)-2:] == "AA" {
		suffix = "BB"
	}
	tampered := token[:len(token)-2] + suffix
	rec := f.do(t, http.MethodGet, "/api/profile", tampered, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "token_signature_invalid" {
		t.Fatalf("code=%q", resp.Code)
	}
}

func TestPublicPathsSkipAuth(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/healthz", "/readyz", "/api/info"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc.def.ghi", "abc.def.ghi", true},
		{"Basic dXNlcg==", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("extractBearerToken(%q) = %q, %v", tc.header, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("extractBearerToken(%q): expected error", tc.header)
		}
	}
}
