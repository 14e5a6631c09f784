package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/sessions"

	service "github.com/okian/vauva/internal/app"
	"github.com/okian/vauva/internal/catalog"
	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Authenticate checks a login and returns its session identity.
	Authenticate(ctx context.Context, login, password string) (heart.Account, error)
	// Account resolves the identity of a login stored in a session.
	Account(login string) (heart.Account, bool)

	LoadHearts(ctx context.Context, account string) ([]heart.Record, error)
	SaveHearts(ctx context.Context, account, batchID string, records []heart.Record) (service.SaveResult, error)

	// Read operations expose aggregated views.
	Results(ctx context.Context, account string, round int) (service.Results, error)
	Catalog(q catalog.Query) (catalog.Page, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	authHandler    *AuthHandler
	heartsHandler  *HeartsHandler
	resultsHandler *ResultsHandler
	namesHandler   *NamesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := newOptions(opts)
	sess := &sessionManager{store: o.sessionStore(), name: o.sessionName}
	return &Server{
		healthHandler:  NewHealthHandler(nil, o.logger),
		statsHandler:   NewStatsHandler(statsProvider, o.logger),
		authHandler:    NewAuthHandler(deps, sess, o),
		heartsHandler:  NewHeartsHandler(deps, sess, o),
		resultsHandler: NewResultsHandler(deps, sess, o),
		namesHandler:   NewNamesHandler(deps, o),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, endpointHealth))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, endpointStats))
	mux.HandleFunc("/api/login", MetricsMiddleware(s.authHandler.HandleLogin, endpointLogin))
	mux.HandleFunc("/api/logout", MetricsMiddleware(s.authHandler.HandleLogout, endpointLogout))
	mux.HandleFunc("/api/user", MetricsMiddleware(s.authHandler.HandleUser, endpointUser))
	mux.HandleFunc("/api/hearts", MetricsMiddleware(s.heartsHandler.HandleHearts, endpointHearts))
	mux.HandleFunc("/api/results", MetricsMiddleware(s.resultsHandler.HandleResults, endpointResults))
	mux.HandleFunc("/api/names", MetricsMiddleware(s.namesHandler.HandleNames, endpointNames))
}

// Option configures the API server.
type Option func(*options)

type options struct {
	sessionSecret  []byte
	sessionName    string
	sessionMaxAge  int
	secureCookies  bool
	store          sessions.Store
	maxBodyBytes   int64
	loginPerMinute float64
	loginBurst     int
	logger         logger.Logger
}

// WithSessionSecret sets the key signing the session cookie.
func WithSessionSecret(secret string) Option {
	return func(o *options) { o.sessionSecret = []byte(secret) }
}

// WithSessionName sets the session cookie name.
func WithSessionName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.sessionName = name
		}
	}
}

// WithSessionMaxAge bounds the session cookie lifetime in seconds.
func WithSessionMaxAge(sec int) Option {
	return func(o *options) {
		if sec > 0 {
			o.sessionMaxAge = sec
		}
	}
}

// WithSecureCookies sets the Secure flag on the session cookie.
func WithSecureCookies(on bool) Option {
	return func(o *options) { o.secureCookies = on }
}

// WithSessionStore replaces the cookie store.
func WithSessionStore(store sessions.Store) Option {
	return func(o *options) { o.store = store }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithLoginLimit throttles login attempts per account.
func WithLoginLimit(perMinute float64, burst int) Option {
	return func(o *options) {
		if perMinute > 0 && burst > 0 {
			o.loginPerMinute = perMinute
			o.loginBurst = burst
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		sessionName:    "vauva-session",
		sessionMaxAge:  30 * 24 * 60 * 60,
		maxBodyBytes:   100 * 1024,
		loginPerMinute: 10,
		loginBurst:     5,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) sessionStore() sessions.Store {
	if o.store != nil {
		return o.store
	}
	store := sessions.NewCookieStore(o.sessionSecret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   o.sessionMaxAge,
		HttpOnly: true,
		Secure:   o.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	tagErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail classifies err, logs server faults and writes the error body.
func fail(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Error(err))
		// internals stay in the log
		err = errors.New(http.StatusText(status))
	}
	writeError(w, status, code, err)
}

// decodeJSON reads a single JSON value from a size-capped body.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBodyTooLarge
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func allow(w http.ResponseWriter, r *http.Request, log logger.Logger, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	fail(r.Context(), w, log, NewKind(r.URL.Path, ErrMethodNotAllowed))
	return false
}
