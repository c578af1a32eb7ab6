// Package httpapi exposes ingestion, snapshot and aggregation over HTTP.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every route of h
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// devices post with and without the trailing slash; a redirect would drop the body
	r.HandleFunc("/ingest", h.Ingest).Methods(http.MethodPost)
	r.HandleFunc("/ingest/", h.Ingest).Methods(http.MethodPost)

	r.HandleFunc("/snapshot", h.SnapshotAll).Methods(http.MethodGet)
	r.HandleFunc("/snapshot/{zone}", h.SnapshotZone).Methods(http.MethodGet)

	r.HandleFunc("/sensor/daily", h.DailyAll).Methods(http.MethodGet)
	r.HandleFunc("/sensor/daily/{zone}", h.Daily).Methods(http.MethodGet)
	r.HandleFunc("/sensor/monthly", h.MonthlyAll).Methods(http.MethodGet)
	r.HandleFunc("/sensor/monthly/{zone}", h.Monthly).Methods(http.MethodGet)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	r.Use(h.requestID)
	r.Use(h.logRequests)
	r.Use(observe)

	return r
}
