package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/vauva/internal/catalog"
	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/pkg/logger"
)

// IdempotencyKeyHeader carries the client's save batch id.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader is set on a save answered from an earlier identical batch.
const ReplayedHeader = "Idempotent-Replayed"

// HeartsHandler handles load and save of the working set.
type HeartsHandler struct {
	deps    Dependencies
	sess    *sessionManager
	maxBody int64
	log     logger.Logger
}

// NewHeartsHandler creates a new hearts handler.
func NewHeartsHandler(deps Dependencies, sess *sessionManager, o *options) *HeartsHandler {
	return &HeartsHandler{deps: deps, sess: sess, maxBody: o.maxBodyBytes, log: o.logger}
}

// HandleHearts handles GET and POST /api/hearts requests.
func (h *HeartsHandler) HandleHearts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.load(w, r)
	case http.MethodPost:
		h.save(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		fail(r.Context(), w, h.log, NewKind("api.hearts", ErrMethodNotAllowed))
	}
}

func (h *HeartsHandler) load(w http.ResponseWriter, r *http.Request) {
	acc, ok := requireAccount(w, r, h.deps, h.sess, h.log)
	if !ok {
		return
	}
	records, err := h.deps.LoadHearts(r.Context(), acc.Login)
	if err != nil {
		fail(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

func (h *HeartsHandler) save(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_hearts"
	acc, ok := requireAccount(w, r, h.deps, h.sess, h.log)
	if !ok {
		return
	}
	var records []heart.Record
	if err := decodeJSON(w, r, h.maxBody, &records); err != nil {
		fail(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}

	batchID := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if batchID != "" {
		if _, err := uuid.Parse(batchID); err != nil {
			fail(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
			return
		}
	}

	res, err := h.deps.SaveHearts(r.Context(), acc.Login, batchID, records)
	if err != nil {
		fail(r.Context(), w, h.log, err)
		return
	}
	if res.Duplicate {
		w.Header().Set(ReplayedHeader, "true")
	}
	writeJSON(w, http.StatusOK, nonNil(res.Records))
}

func nonNil(records []heart.Record) []heart.Record {
	if records == nil {
		return []heart.Record{}
	}
	return records
}

// ResultsHandler handles aggregated results.
type ResultsHandler struct {
	deps Dependencies
	sess *sessionManager
	log  logger.Logger
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps Dependencies, sess *sessionManager, o *options) *ResultsHandler {
	return &ResultsHandler{deps: deps, sess: sess, log: o.logger}
}

// HandleResults handles GET /api/results?round=N requests.
func (h *ResultsHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.results"
	if !allow(w, r, h.log, http.MethodGet) {
		return
	}
	acc, ok := requireAccount(w, r, h.deps, h.sess, h.log)
	if !ok {
		return
	}
	round, err := intParam(r, "round", 0)
	if err != nil {
		fail(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Results(r.Context(), acc.Login, round)
	if err != nil {
		fail(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// NamesHandler serves the name catalog. It needs no session.
type NamesHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewNamesHandler creates a new names handler.
func NewNamesHandler(deps Dependencies, o *options) *NamesHandler {
	return &NamesHandler{deps: deps, log: o.logger}
}

// HandleNames handles GET /api/names requests.
func (h *NamesHandler) HandleNames(w http.ResponseWriter, r *http.Request) {
	const op = "api.names"
	if !allow(w, r, h.log, http.MethodGet) {
		return
	}
	q := catalog.Query{
		View:  catalog.View(r.URL.Query().Get("view")),
		Order: catalog.Order(r.URL.Query().Get("order")),
	}
	if q.View == "" {
		q.View = catalog.Girls
	}
	var err error
	if q.Page, err = intParam(r, "page", 0); err != nil {
		fail(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	if q.PageSize, err = intParam(r, "pageSize", 0); err != nil {
		fail(r.Context(), w, h.log, WrapKind(op, ErrBadRequest, err))
		return
	}
	page, err := h.deps.Catalog(q)
	if err != nil {
		fail(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
