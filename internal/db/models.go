package db

import (
	"time"

	"github.com/google/uuid"
)

// ZoneReadingRow represents a row of zone_readings in the database
type ZoneReadingRow struct {
	ID               uuid.UUID
	Zone             string
	ZoneID           string
	SoilMoisture     float64
	Temperature      float64
	Humidity         float64
	GasLevel         *float64
	LightLevel       *float64
	ActuatorState    string
	ReadingTimestamp time.Time
	PersistedAt      time.Time
}
