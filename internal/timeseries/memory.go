package timeseries

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/septivank/farm-telemetry/internal/model"
)

// MemoryStore keeps records per zone, sorted by timestamp. It backs tests
// and single-node deployments that accept losing history on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	byZone map[string][]model.Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byZone: make(map[string][]model.Record)}
}

// Append inserts rec keeping the zone's records ordered. Records with equal
// timestamps keep insertion order.
func (m *MemoryStore) Append(ctx context.Context, rec model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	recs := m.byZone[rec.Reading.Zone]
	i := sort.Search(len(recs), func(i int) bool {
		return recs[i].Reading.Timestamp.After(rec.Reading.Timestamp)
	})
	recs = append(recs, model.Record{})
	copy(recs[i+1:], recs[i:])
	recs[i] = rec
	m.byZone[rec.Reading.Zone] = recs
	return nil
}

// QueryRange returns a copy of the zone's records within [start, end].
func (m *MemoryStore) QueryRange(ctx context.Context, zone string, start, end time.Time) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return window(m.byZone[zone], start, end), nil
}

// QueryRangeAllZones merges every zone's records within [start, end].
func (m *MemoryStore) QueryRangeAllZones(ctx context.Context, start, end time.Time) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := []model.Record{}
	for _, recs := range m.byZone {
		out = append(out, window(recs, start, end)...)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Reading.Timestamp.Before(out[j].Reading.Timestamp)
	})
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func window(recs []model.Record, start, end time.Time) []model.Record {
	lo := sort.Search(len(recs), func(i int) bool {
		return !recs[i].Reading.Timestamp.Before(start)
	})
	hi := sort.Search(len(recs), func(i int) bool {
		return recs[i].Reading.Timestamp.After(end)
	})
	if lo >= hi {
		return []model.Record{}
	}
	out := make([]model.Record, hi-lo)
	copy(out, recs[lo:hi])
	return out
}
