package api

import (
	"net/http"

	"github.com/okian/vauva/pkg/logger"
)

// StatsProvider reports service statistics such as the store driver, the
// number of heart records and remembered save batches.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves /stats.
type StatsHandler struct {
	statsProvider StatsProvider
	log           logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, log logger.Logger) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, log: log}
}

// HandleStats handles GET /stats requests. The numbers change with every
// save, so responses are not cached.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, h.log, http.MethodGet) {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}
