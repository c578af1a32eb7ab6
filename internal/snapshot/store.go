// Package snapshot holds the most recent reading per zone in memory.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/septivank/farm-telemetry/internal/model"
)

// Entry is the current state of one zone.
type Entry struct {
	Reading     model.Reading `json:"reading"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// Store keeps one slot per known zone. Slots are created up front and never
// removed, so the map itself is read-only after construction and each slot
// is swapped atomically.
type Store struct {
	zones *model.Zones
	slots map[string]*atomic.Pointer[Entry]
	now   func() time.Time
}

// NewStore creates an empty store for the given zones.
func NewStore(zones *model.Zones) *Store {
	s := &Store{
		zones: zones,
		slots: make(map[string]*atomic.Pointer[Entry]),
		now:   time.Now,
	}
	for _, name := range zones.Names() {
		s.slots[name] = new(atomic.Pointer[Entry])
	}
	return s
}

// Put overwrites the snapshot of zone. Last write wins regardless of the
// reading timestamps. Readings for unknown zones are ignored.
func (s *Store) Put(zone string, reading model.Reading) {
	slot, ok := s.slots[zone]
	if !ok {
		return
	}
	slot.Store(&Entry{Reading: reading, LastUpdated: s.now()})
}

// Get returns the current entry of zone; ok is false when no reading has
// arrived yet or the zone is unknown.
func (s *Store) Get(zone string) (Entry, bool) {
	slot, ok := s.slots[zone]
	if !ok {
		return Entry{}, false
	}
	e := slot.Load()
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// GetAll returns every known zone; zones without data map to nil.
func (s *Store) GetAll() map[string]*Entry {
	out := make(map[string]*Entry, len(s.slots))
	for name, slot := range s.slots {
		if e := slot.Load(); e != nil {
			cp := *e
			out[name] = &cp
		} else {
			out[name] = nil
		}
	}
	return out
}

// Zones returns the zone set of the store.
func (s *Store) Zones() *model.Zones {
	return s.zones
}
