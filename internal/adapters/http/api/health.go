package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/vauva/pkg/logger"
	"github.com/okian/vauva/pkg/metrics"
)

// HealthHandler answers /healthz with the Prometheus exposition of the
// vauva registry: heart, save, session, HTTP and system series.
type HealthHandler struct {
	exposition http.Handler
	log        logger.Logger
}

// NewHealthHandler creates a health handler over registry. A nil registry
// selects the service registry.
func NewHealthHandler(registry *prometheus.Registry, log logger.Logger) *HealthHandler {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &HealthHandler{
		exposition: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			Registry:      registry,
			ErrorHandling: promhttp.ContinueOnError,
		}),
		log: log,
	}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, h.log, http.MethodGet) {
		return
	}
	h.exposition.ServeHTTP(w, r)
}
