package httpapi

import (
	"errors"
	"net/http"

	"carehome.org/internal/audit"
	"carehome.org/internal/auth"
	"carehome.org/internal/obs"
)

type captchaResponse struct {
	UUID    string `json:"uuid"`
	Captcha string `json:"captcha"`
}

func (a *API) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	ch, err := a.auth.IssueCaptcha(r.Context())
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "captcha unavailable")
		return
	}
	obs.ObserveCaptchaIssued()
	writeJSON(w, http.StatusOK, captchaResponse{UUID: ch.ID, Captcha: ch.Text})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Captcha  string `json:"captcha"`
	UUID     string `json:"uuid"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.auth.Login(r.Context(), auth.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		Captcha:   req.Captcha,
		CaptchaID: req.UUID,
	})
	if err != nil {
		a.loginFailed(w, r, req.Username, err)
		return
	}

	obs.ObserveCaptchaVerified("ok")
	obs.ObserveLogin("granted")
	ctx := auth.ContextWithSession(r.Context(), session)
	_ = audit.LogEvent(ctx, audit.EventLoginSucceeded, map[string]any{
		"remote_ip": clientIP(r),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: session.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(a.auth.TokenTTL().Seconds()),
	})
}

// loginFailed maps a login error to its status and stable code. The
// user-visible message is the same for every credential-class failure.
func (a *API) loginFailed(w http.ResponseWriter, r *http.Request, username string, err error) {
	code := auth.ErrorCode(err)

	var status int
	switch {
	case errors.Is(err, auth.ErrCaptchaInvalid):
		obs.ObserveCaptchaVerified("rejected")
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrAccountLocked):
		obs.ObserveCaptchaVerified("ok")
		status = http.StatusLocked
	case errors.Is(err, auth.ErrBadCredentials), errors.Is(err, auth.ErrAccountDisabled):
		obs.ObserveCaptchaVerified("ok")
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrCacheUnavailable):
		status = http.StatusServiceUnavailable
	default:
		code = "error"
		status = http.StatusInternalServerError
	}

	obs.ObserveLogin(code)
	_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{
		"login_name": username,
		"code":       code,
		"remote_ip":  clientIP(r),
	})

	payload := map[string]any{
		"error": "login failed",
		"code":  code,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	// Tokens are stateless; logout is an audited acknowledgement and the
	// client discards the token.
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type profileResponse struct {
	AccountID string   `json:"account_id"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}
	roles := session.RoleKeys
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, profileResponse{
		AccountID: session.AccountID,
		Username:  session.Username,
		Roles:     roles,
	})
}
