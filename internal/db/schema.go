package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are idempotent and applied in order at startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS zone_readings (
		id                uuid PRIMARY KEY,
		zone              text NOT NULL,
		zone_id           text NOT NULL,
		soil_moisture     double precision NOT NULL,
		temperature       double precision NOT NULL,
		humidity          double precision NOT NULL,
		gas_level         double precision,
		light_level       double precision,
		actuator_state    text NOT NULL CHECK (actuator_state IN ('ON', 'OFF')),
		reading_timestamp timestamptz NOT NULL,
		persisted_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS zone_readings_zone_ts_idx ON zone_readings (zone, reading_timestamp)`,
	`CREATE INDEX IF NOT EXISTS zone_readings_ts_idx ON zone_readings (reading_timestamp)`,
}

// EnsureSchema creates the zone_readings table and its indexes if missing
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("[DATABASE] failed to apply schema: %w", err)
		}
	}
	return nil
}
