// Package api serves the vauva JSON API: sessions, hearts, results and the
// name catalog, plus the operational /healthz and /stats routes.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/vauva/pkg/metrics"
)

// Endpoint labels of the HTTP metrics.
const (
	endpointHealth  = "healthz"
	endpointStats   = "stats"
	endpointLogin   = "login"
	endpointLogout  = "logout"
	endpointUser    = "user"
	endpointHearts  = "hearts"
	endpointResults = "results"
	endpointNames   = "names"
)

// MetricsMiddleware records request count and latency per endpoint. Failed
// requests are also counted by the API error code the handler answered
// with, so a rejected save shows up as invalid_record rather than a bare 400.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(time.Since(start).Microseconds())/1000)
		if rec.status >= http.StatusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, rec.errorCode())
		}
	}
}

// statusRecorder remembers the first status and the error code written
// through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
	wrote  bool
}

func (rec *statusRecorder) WriteHeader(status int) {
	if !rec.wrote {
		rec.status = status
		rec.wrote = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wrote = true
	return rec.ResponseWriter.Write(b)
}

// errorCode is the code given to writeError, or a coarse class for
// responses written some other way.
func (rec *statusRecorder) errorCode() string {
	switch {
	case rec.code != "":
		return rec.code
	case rec.status >= http.StatusInternalServerError:
		return "internal"
	default:
		return "client_error"
	}
}

// tagErrorCode hands code to an enclosing MetricsMiddleware.
func tagErrorCode(w http.ResponseWriter, code string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
}
