// Package service applies incoming readings: validation, the live snapshot,
// async persistence and accepted-reading events.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/apperr"
	"github.com/septivank/farm-telemetry/internal/logging"
	"github.com/septivank/farm-telemetry/internal/metrics"
	"github.com/septivank/farm-telemetry/internal/model"
	"github.com/septivank/farm-telemetry/internal/snapshot"
	"github.com/septivank/farm-telemetry/internal/validator"
)

const publishTimeout = 2 * time.Second

// RecordSink receives records for durable storage
type RecordSink interface {
	Submit(rec model.Record) bool
}

// EventPublisher announces accepted readings
type EventPublisher interface {
	PublishReading(ctx context.Context, reading model.Reading) error
}

// NoopPublisher is used when no broker is configured
type NoopPublisher struct{}

func (NoopPublisher) PublishReading(context.Context, model.Reading) error { return nil }

// Rejection explains why one zone of a payload was skipped
type Rejection struct {
	Zone   string `json:"zone"`
	Reason string `json:"reason"`
}

// Result lists the zones applied by one ingestion call
type Result struct {
	Accepted []string    `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}

// Coordinator is the ingestion entry point. The snapshot is updated before
// Ingest returns; persistence is handed to the sink and never affects the
// result.
type Coordinator struct {
	validator *validator.Validator
	snapshot  *snapshot.Store
	sink      RecordSink
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewCoordinator creates a coordinator. A nil publisher disables events.
func NewCoordinator(
	v *validator.Validator,
	snap *snapshot.Store,
	sink RecordSink,
	publisher EventPublisher,
	logger *zap.Logger,
) *Coordinator {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Coordinator{
		validator: v,
		snapshot:  snap,
		sink:      sink,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// IngestJSON decodes body and ingests it
func (c *Coordinator) IngestJSON(ctx context.Context, body []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, apperr.Wrap(apperr.InvalidPayload, "body must be a JSON object", err)
	}
	return c.Ingest(ctx, payload)
}

// Ingest applies a single-zone payload (top-level "zone" key) or a
// multi-zone payload keyed by zone. Multi-zone payloads are applied per
// zone; the call fails only when no zone is valid.
func (c *Coordinator) Ingest(ctx context.Context, payload map[string]any) (*Result, error) {
	if len(payload) == 0 {
		return nil, apperr.New(apperr.InvalidPayload, "payload is empty")
	}

	if _, single := payload["zone"]; single {
		return c.ingestSingle(ctx, payload)
	}
	return c.ingestMulti(ctx, payload)
}

func (c *Coordinator) ingestSingle(ctx context.Context, payload map[string]any) (*Result, error) {
	reading, err := c.validator.ValidateReading("", payload)
	if err != nil {
		c.reject(fmt.Sprint(payload["zone"]), err)
		return nil, err
	}

	c.apply(ctx, reading)
	return &Result{Accepted: []string{reading.Zone}, Rejected: []Rejection{}}, nil
}

func (c *Coordinator) ingestMulti(ctx context.Context, payload map[string]any) (*Result, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := &Result{Accepted: []string{}, Rejected: []Rejection{}}
	for _, key := range keys {
		raw, ok := payload[key].(map[string]any)
		if !ok {
			err := apperr.New(apperr.InvalidPayload, "zone payload must be an object")
			c.reject(key, err)
			res.Rejected = append(res.Rejected, Rejection{Zone: key, Reason: err.Message})
			continue
		}

		reading, err := c.validator.ValidateReading(key, raw)
		if err != nil {
			c.reject(key, err)
			res.Rejected = append(res.Rejected, Rejection{Zone: key, Reason: reason(err)})
			continue
		}

		c.apply(ctx, reading)
		res.Accepted = append(res.Accepted, reading.Zone)
	}

	if len(res.Accepted) == 0 {
		return nil, apperr.New(apperr.InvalidPayload, "no valid zone reading in payload")
	}
	return res, nil
}

func (c *Coordinator) apply(ctx context.Context, reading model.Reading) {
	logger := logging.WithZone(c.logger, reading.Zone)
	c.snapshot.Put(reading.Zone, reading)
	metrics.ReadingsIngested.WithLabelValues(reading.Zone, "accepted").Inc()

	rec := model.NewRecord(reading, c.now())
	c.sink.Submit(rec)

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := c.publisher.PublishReading(pubCtx, reading); err != nil {
		logger.Warn("failed to publish reading event",
			zap.Error(err),
			zap.String("record_id", rec.ID.String()),
		)
	}

	logger.Debug("reading accepted",
		zap.String("record_id", rec.ID.String()),
		zap.Time("timestamp", reading.Timestamp),
	)
}

func (c *Coordinator) reject(zone string, err error) {
	label := "unknown"
	if name, ok := c.validator.Zones().Resolve(zone); ok {
		label = name
	}
	metrics.ReadingsIngested.WithLabelValues(label, "rejected").Inc()
	c.logger.Warn("reading rejected", zap.String("zone", zone), zap.Error(err))
}

func reason(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
