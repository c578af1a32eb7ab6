package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/aggregate"
	"github.com/septivank/farm-telemetry/internal/apperr"
	"github.com/septivank/farm-telemetry/internal/model"
	"github.com/septivank/farm-telemetry/internal/service"
	"github.com/septivank/farm-telemetry/internal/snapshot"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

// HealthChecker reports storage reachability
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps holds the collaborators of Handler
type Deps struct {
	Coordinator *service.Coordinator
	Snapshot    *snapshot.Store
	Engine      *aggregate.Engine
	Health      HealthChecker
	Logger      *zap.Logger
	Debug       bool
}

// Handler serves the HTTP API
type Handler struct {
	coordinator *service.Coordinator
	snapshot    *snapshot.Store
	engine      *aggregate.Engine
	health      HealthChecker
	logger      *zap.Logger
	debug       bool
}

// NewHandler creates a handler
func NewHandler(d Deps) *Handler {
	return &Handler{
		coordinator: d.Coordinator,
		snapshot:    d.Snapshot,
		engine:      d.Engine,
		health:      d.Health,
		logger:      d.Logger,
		debug:       d.Debug,
	}
}

// SnapshotView is the current state of one zone
type SnapshotView struct {
	model.Reading
	LastUpdated time.Time `json:"lastUpdated"`
}

type ingestResponse struct {
	Status string `json:"status"`
	*service.Result
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// Ingest handles POST /ingest
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.ingestError(w, r, apperr.Wrap(apperr.InvalidPayload, "body could not be read", err))
		return
	}

	res, err := h.coordinator.IngestJSON(r.Context(), body)
	if err != nil {
		h.ingestError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, ingestResponse{Status: "success", Result: res})
}

// ingestError keeps the device-facing error body stable
func (h *Handler) ingestError(w http.ResponseWriter, r *http.Request, err error) {
	if !apperr.Is(err, apperr.InvalidPayload) {
		h.respondError(w, r, err)
		return
	}
	resp := errorResponse{Error: "Invalid payload", Kind: string(apperr.InvalidPayload)}
	if h.debug {
		resp.Detail = err.Error()
	}
	h.respondJSON(w, r, http.StatusBadRequest, resp)
}

// SnapshotAll handles GET /snapshot
func (h *Handler) SnapshotAll(w http.ResponseWriter, r *http.Request) {
	all := h.snapshot.GetAll()
	out := make(map[string]*SnapshotView, len(all))
	for zone, entry := range all {
		out[zone] = toView(entry)
	}
	h.respondJSON(w, r, http.StatusOK, out)
}

// SnapshotZone handles GET /snapshot/{zone}. A known zone without data
// yields null.
func (h *Handler) SnapshotZone(w http.ResponseWriter, r *http.Request) {
	name, ok := h.snapshot.Zones().Resolve(mux.Vars(r)["zone"])
	if !ok {
		h.respondError(w, r, apperr.New(apperr.NotFound, "Zone not found"))
		return
	}

	entry, ok := h.snapshot.Get(name)
	if !ok {
		h.respondJSON(w, r, http.StatusOK, nil)
		return
	}
	h.respondJSON(w, r, http.StatusOK, toView(&entry))
}

// Daily handles GET /sensor/daily/{zone}?date=YYYY-MM-DD
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	date, err := h.engine.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.engine.Daily(r.Context(), mux.Vars(r)["zone"], date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, struct {
		Message string `json:"message"`
		*aggregate.DailyResult
	}{"Daily data retrieved successfully", res})
}

// DailyAll handles GET /sensor/daily?date=YYYY-MM-DD
func (h *Handler) DailyAll(w http.ResponseWriter, r *http.Request) {
	date, err := h.engine.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.engine.DailyAll(r.Context(), date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, struct {
		Message string `json:"message"`
		*aggregate.DailyAllResult
	}{"Daily data for all zones retrieved successfully", res})
}

// Monthly handles GET /sensor/monthly/{zone}?year=YYYY&month=M
func (h *Handler) Monthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, err := h.engine.ParseYearMonth(q.Get("year"), q.Get("month"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.engine.Monthly(r.Context(), mux.Vars(r)["zone"], year, month)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, struct {
		Message string `json:"message"`
		*aggregate.MonthlyResult
	}{"Monthly data retrieved successfully", res})
}

// MonthlyAll handles GET /sensor/monthly?year=YYYY&month=M
func (h *Handler) MonthlyAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, err := h.engine.ParseYearMonth(q.Get("year"), q.Get("month"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.engine.MonthlyAll(r.Context(), year, month)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, struct {
		Message string `json:"message"`
		*aggregate.MonthlyAllResult
	}{"Monthly data for all zones retrieved successfully", res})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	body := map[string]any{"status": "ok", "storage": "up"}
	if s, ok := h.health.(interface{ State() string }); ok {
		body["breaker"] = s.State()
	}

	if err := h.health.Ping(ctx); err != nil {
		h.log(r).Warn("health check failed", zap.Error(err))
		body["status"] = "degraded"
		body["storage"] = "down"
		body["kind"] = string(apperr.StorageUnavailable)
		if h.debug {
			body["detail"] = err.Error()
		}
		h.respondJSON(w, r, http.StatusServiceUnavailable, body)
		return
	}
	h.respondJSON(w, r, http.StatusOK, body)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusNotFound, errorResponse{Error: "Route not found", Kind: string(apperr.NotFound)})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed", Kind: "MethodNotAllowed"})
}

// respondError maps err to its status and a stable body. Internal details
// are only exposed in debug mode.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)

	resp := errorResponse{Error: "Internal server error", Kind: string(kind)}
	var e *apperr.Error
	if errors.As(err, &e) {
		resp.Error = e.Message
	}
	if h.debug {
		resp.Detail = err.Error()
	}

	if status >= http.StatusInternalServerError {
		h.log(r).Error("request failed", zap.Error(err), zap.String("kind", string(kind)))
	}
	h.respondJSON(w, r, status, resp)
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidPayload, apperr.InvalidZone, apperr.InvalidDate, apperr.InvalidYear, apperr.InvalidMonth:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.StorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func toView(e *snapshot.Entry) *SnapshotView {
	if e == nil {
		return nil
	}
	return &SnapshotView{Reading: e.Reading, LastUpdated: e.LastUpdated}
}

// respondJSON encodes data before writing the status so an encoding failure
// still produces a well-formed 500.
func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		h.log(r).Error("failed to encode response", zap.Error(err), zap.Int("status", status))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "Internal server error", Kind: string(apperr.Internal)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.log(r).Debug("failed to write response", zap.Error(err))
	}
}
