package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActuatorState is the state of a zone's motor/relay.
type ActuatorState string

const (
	ActuatorOn  ActuatorState = "ON"
	ActuatorOff ActuatorState = "OFF"
)

// ParseActuatorState accepts on/off in any case.
func ParseActuatorState(s string) (ActuatorState, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ActuatorOn):
		return ActuatorOn, true
	case string(ActuatorOff):
		return ActuatorOff, true
	}
	return "", false
}

// Reading is one validated telemetry sample for one zone.
// Gas and light are optional unless a deployment requires them.
type Reading struct {
	Zone          string        `json:"zone"`
	ZoneID        string        `json:"zoneId"`
	SoilMoisture  float64       `json:"soilMoisture"`
	Temperature   float64       `json:"temperature"`
	Humidity      float64       `json:"humidity"`
	GasLevel      *float64      `json:"gasLevel"`
	LightLevel    *float64      `json:"lightLevel"`
	ActuatorState ActuatorState `json:"actuatorState"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Record is a persisted Reading.
type Record struct {
	ID          uuid.UUID `json:"id"`
	Reading     Reading   `json:"reading"`
	PersistedAt time.Time `json:"persistedAt"`
}

// NewRecord assigns a fresh identity to r.
func NewRecord(r Reading, now time.Time) Record {
	return Record{
		ID:          uuid.New(),
		Reading:     r,
		PersistedAt: now,
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
