// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route, method and status
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_telemetry_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"route", "method", "status"},
	)

	// RequestDuration measures HTTP request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farm_telemetry_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"route", "method"},
	)

	// ReadingsIngested counts zone readings by outcome (accepted, rejected)
	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_telemetry_readings_ingested_total",
			Help: "Zone readings received, by zone and outcome",
		},
		[]string{"zone", "outcome"},
	)

	// RecordsPersisted counts async appends by outcome (ok, failed, dropped)
	RecordsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_telemetry_records_persisted_total",
			Help: "Time-series appends, by outcome",
		},
		[]string{"outcome"},
	)

	// WriteQueueDepth is the number of records waiting to be appended
	WriteQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farm_telemetry_write_queue_depth",
			Help: "Records waiting in the async append queue",
		},
	)

	// AggregationDuration measures aggregation queries end to end
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farm_telemetry_aggregation_duration_seconds",
			Help:    "Aggregation query latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"shape"},
	)

	// EventsPublished counts accepted-reading events by outcome
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_telemetry_events_published_total",
			Help: "Accepted-reading events published to the broker, by outcome",
		},
		[]string{"outcome"},
	)
)
