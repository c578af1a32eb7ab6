package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/septivank/farm-telemetry/internal/db"
	"github.com/septivank/farm-telemetry/internal/model"
)

const selectColumns = `
	SELECT id, zone, zone_id, soil_moisture, temperature, humidity,
	       gas_level, light_level, actuator_state, reading_timestamp, persisted_at
	FROM zone_readings
`

// Repository is the PostgreSQL time-series store
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts a reading record. Records are never updated.
func (r *Repository) Append(ctx context.Context, rec model.Record) error {
	query := `
		INSERT INTO zone_readings (
			id, zone, zone_id, soil_moisture, temperature, humidity,
			gas_level, light_level, actuator_state, reading_timestamp, persisted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	row := toRow(rec)
	_, err := r.pool.Exec(ctx, query,
		row.ID,
		row.Zone,
		row.ZoneID,
		row.SoilMoisture,
		row.Temperature,
		row.Humidity,
		row.GasLevel,
		row.LightLevel,
		row.ActuatorState,
		row.ReadingTimestamp,
		row.PersistedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert zone reading: %w", err)
	}

	return nil
}

// QueryRange returns the zone's records with reading_timestamp in [start, end]
func (r *Repository) QueryRange(ctx context.Context, zone string, start, end time.Time) ([]model.Record, error) {
	query := selectColumns + `
		WHERE zone = $1 AND reading_timestamp >= $2 AND reading_timestamp <= $3
		ORDER BY reading_timestamp ASC, persisted_at ASC
	`

	rows, err := r.pool.Query(ctx, query, zone, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone readings: %w", err)
	}
	return scanRecords(rows)
}

// QueryRangeAllZones returns every zone's records with reading_timestamp in [start, end]
func (r *Repository) QueryRangeAllZones(ctx context.Context, start, end time.Time) ([]model.Record, error) {
	query := selectColumns + `
		WHERE reading_timestamp >= $1 AND reading_timestamp <= $2
		ORDER BY reading_timestamp ASC, persisted_at ASC
	`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone readings: %w", err)
	}
	return scanRecords(rows)
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanRecords(rows pgx.Rows) ([]model.Record, error) {
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		var row db.ZoneReadingRow
		if err := rows.Scan(
			&row.ID,
			&row.Zone,
			&row.ZoneID,
			&row.SoilMoisture,
			&row.Temperature,
			&row.Humidity,
			&row.GasLevel,
			&row.LightLevel,
			&row.ActuatorState,
			&row.ReadingTimestamp,
			&row.PersistedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan zone reading: %w", err)
		}
		records = append(records, fromRow(row))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

func toRow(rec model.Record) db.ZoneReadingRow {
	return db.ZoneReadingRow{
		ID:               rec.ID,
		Zone:             rec.Reading.Zone,
		ZoneID:           rec.Reading.ZoneID,
		SoilMoisture:     rec.Reading.SoilMoisture,
		Temperature:      rec.Reading.Temperature,
		Humidity:         rec.Reading.Humidity,
		GasLevel:         rec.Reading.GasLevel,
		LightLevel:       rec.Reading.LightLevel,
		ActuatorState:    string(rec.Reading.ActuatorState),
		ReadingTimestamp: rec.Reading.Timestamp,
		PersistedAt:      rec.PersistedAt,
	}
}

func fromRow(row db.ZoneReadingRow) model.Record {
	return model.Record{
		ID: row.ID,
		Reading: model.Reading{
			Zone:          row.Zone,
			ZoneID:        row.ZoneID,
			SoilMoisture:  row.SoilMoisture,
			Temperature:   row.Temperature,
			Humidity:      row.Humidity,
			GasLevel:      row.GasLevel,
			LightLevel:    row.LightLevel,
			ActuatorState: model.ActuatorState(row.ActuatorState),
			Timestamp:     row.ReadingTimestamp,
		},
		PersistedAt: row.PersistedAt,
	}
}
