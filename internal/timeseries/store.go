// Package timeseries defines the append-only history of zone readings.
package timeseries

import (
	"context"
	"time"

	"github.com/septivank/farm-telemetry/internal/model"
)

// Store is the durable, append-only collection of readings. Range queries
// are inclusive on both ends and return records ordered by reading
// timestamp ascending.
type Store interface {
	Append(ctx context.Context, rec model.Record) error
	QueryRange(ctx context.Context, zone string, start, end time.Time) ([]model.Record, error)
	QueryRangeAllZones(ctx context.Context, start, end time.Time) ([]model.Record, error)
	Ping(ctx context.Context) error
}
