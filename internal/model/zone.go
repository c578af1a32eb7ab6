package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Zones is the fixed, ordered set of zone identifiers known to a deployment.
type Zones struct {
	names []string
	ids   map[string]string
}

// NewZones builds a zone set. ids maps zone name to its stable zone id;
// zones missing from ids get a generated one.
func NewZones(names []string, ids map[string]string) (*Zones, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one zone is required")
	}
	z := &Zones{ids: make(map[string]string, len(names))}
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty zone name at position %d", i)
		}
		if _, dup := z.ids[name]; dup {
			return nil, fmt.Errorf("duplicate zone %q", name)
		}
		id := ids[name]
		if id == "" {
			id = fmt.Sprintf("6587ab12c3456e78901234%02d", 50+i+1)
		}
		z.names = append(z.names, name)
		z.ids[name] = id
	}
	return z, nil
}

// DefaultZones returns zone1..zone3 with their historical ids.
func DefaultZones() *Zones {
	z, _ := NewZones([]string{"zone1", "zone2", "zone3"}, nil)
	return z
}

// Names returns the zone names in configured order.
func (z *Zones) Names() []string {
	out := make([]string, len(z.names))
	copy(out, z.names)
	return out
}

// Contains reports whether name is a known zone.
func (z *Zones) Contains(name string) bool {
	_, ok := z.ids[name]
	return ok
}

// ID returns the stable id of a known zone.
func (z *Zones) ID(name string) string {
	return z.ids[name]
}

// Resolve maps "zone2" or "2" to the canonical zone name.
func (z *Zones) Resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if z.Contains(ref) {
		return ref, true
	}
	if n, err := strconv.Atoi(ref); err == nil && n > 0 {
		name := "zone" + strconv.Itoa(n)
		if z.Contains(name) {
			return name, true
		}
	}
	return "", false
}
