package api

import (
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"golang.org/x/time/rate"

	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/pkg/logger"
	"github.com/okian/vauva/pkg/metrics"
)

const sessionLoginKey = "login"

var validate = validator.New()

// sessionManager reads and writes the login held in the session cookie.
type sessionManager struct {
	store sessions.Store
	name  string
}

// login returns the login stored in the request's session, if any.
func (m *sessionManager) login(r *http.Request) (string, bool) {
	// a cookie that no longer verifies yields a fresh session and an error
	session, err := m.store.Get(r, m.name)
	if err != nil || session.IsNew {
		return "", false
	}
	login, ok := session.Values[sessionLoginKey].(string)
	return login, ok && login != ""
}

func (m *sessionManager) start(w http.ResponseWriter, r *http.Request, login string) error {
	session, _ := m.store.Get(r, m.name)
	session.Values[sessionLoginKey] = login
	return session.Save(r, w)
}

func (m *sessionManager) destroy(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.Get(r, m.name)
	delete(session.Values, sessionLoginKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// loginLimiter keeps one token bucket per configured account. Unknown
// logins share a single bucket so they cannot grow the map.
type loginLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLoginLimiter(perMinute float64, burst int) *loginLimiter {
	return &loginLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *loginLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

type loginRequest struct {
	Account  string `json:"account" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// AuthHandler handles login, logout and session identity.
type AuthHandler struct {
	deps    Dependencies
	sess    *sessionManager
	limiter *loginLimiter
	maxBody int64
	log     logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps Dependencies, sess *sessionManager, o *options) *AuthHandler {
	return &AuthHandler{
		deps:    deps,
		sess:    sess,
		limiter: newLoginLimiter(o.loginPerMinute, o.loginBurst),
		maxBody: o.maxBodyBytes,
		log:     o.logger,
	}
}

// HandleLogin handles POST /api/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	if !allow(w, r, h.log, http.MethodPost) {
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		fail(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		fail(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}

	key := ""
	if _, ok := h.deps.Account(req.Account); ok {
		key = req.Account
	}
	if !h.limiter.allow(key) {
		metrics.RecordLoginThrottled()
		fail(r.Context(), w, h.log, NewKind(op, ErrTooManyRequests))
		return
	}

	acc, err := h.deps.Authenticate(r.Context(), req.Account, req.Password)
	if err != nil {
		fail(r.Context(), w, h.log, err)
		return
	}
	if err := h.sess.start(w, r, acc.Login); err != nil {
		fail(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// HandleLogout handles POST /api/logout requests.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, h.log, http.MethodPost) {
		return
	}
	if err := h.sess.destroy(w, r); err != nil {
		fail(r.Context(), w, h.log, err)
		return
	}
	metrics.RecordLogout()
	writeJSON(w, http.StatusOK, heart.LoggedOut())
}

// HandleUser handles GET /api/user requests.
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, h.log, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, currentAccount(h.deps, h.sess, r))
}

// currentAccount resolves the session identity, logged out when absent
// or when the login is no longer configured.
func currentAccount(deps Dependencies, sess *sessionManager, r *http.Request) heart.Account {
	login, ok := sess.login(r)
	if !ok {
		return heart.LoggedOut()
	}
	acc, ok := deps.Account(login)
	if !ok {
		return heart.LoggedOut()
	}
	return acc
}

// requireAccount writes 401 and returns false when the request has no session.
func requireAccount(w http.ResponseWriter, r *http.Request, deps Dependencies, sess *sessionManager, log logger.Logger) (heart.Account, bool) {
	acc := currentAccount(deps, sess, r)
	if !acc.IsLoggedIn {
		fail(r.Context(), w, log, NewKind(r.URL.Path, ErrUnauthorized))
		return acc, false
	}
	return acc, true
}
