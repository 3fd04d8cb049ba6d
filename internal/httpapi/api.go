// Package httpapi is the HTTP edge: routing, authentication middleware,
// and the translation of auth errors into status codes and stable codes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"carehome.org/internal/auth"
	"carehome.org/internal/obs"
	"carehome.org/internal/residents"
)

// AuthService is the slice of the authorization facade the handlers use.
type AuthService interface {
	IssueCaptcha(ctx context.Context) (auth.Challenge, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.Session, error)
	Authorize(ctx context.Context, token string) (auth.Session, error)
	ScopeFilter(ctx context.Context, session auth.Session, tableAlias string) (string, error)
	TokenTTL() time.Duration
}

// ResidentStore is the scope-filtered resident roster.
type ResidentStore interface {
	List(ctx context.Context, scopePredicate string, q residents.Query) ([]residents.Resident, error)
	Count(ctx context.Context, scopePredicate string) (int, error)
	Get(ctx context.Context, scopePredicate, id string) (*residents.Resident, error)
}

// ReadyProbe checks the backing database for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       AuthService
	residents  ResidentStore
	readyProbe ReadyProbe
	version    string

	loginBurst     int
	loginPerSecond int
}

// Option configures the API.
type Option func(*API)

// WithLoginRateLimit overrides the per-IP token bucket on /api/login.
func WithLoginRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.loginBurst = burst
			a.loginPerSecond = perSecond
		}
	}
}

func New(authSvc AuthService, store ResidentStore, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:            http.NewServeMux(),
		auth:           authSvc,
		residents:      store,
		readyProbe:     rp,
		version:        version,
		loginBurst:     5,
		loginPerSecond: 2,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/api/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/captcha", a.handleCaptcha)
	a.mux.Handle("/api/login", RateLimit(http.HandlerFunc(a.handleLogin), a.loginBurst, a.loginPerSecond))
	a.mux.HandleFunc("/api/logout", a.handleLogout)
	a.mux.HandleFunc("/api/profile", a.handleProfile)
	a.mux.HandleFunc("/api/residents", a.handleResidentList)
	a.mux.HandleFunc("/api/residents/", a.handleResidentGet)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = Logging(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "carehome-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "carehome-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
