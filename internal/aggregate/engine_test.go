package aggregate_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/septivank/farm-telemetry/internal/aggregate"
	"github.com/septivank/farm-telemetry/internal/apperr"
	"github.com/septivank/farm-telemetry/internal/model"
	"github.com/septivank/farm-telemetry/internal/timeseries"
)

var clock = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

func newEngine(store timeseries.Store, loc *time.Location) *aggregate.Engine {
	return aggregate.NewEngine(store, model.DefaultZones(), loc).WithClock(func() time.Time { return clock })
}

func seed(t *testing.T, store *timeseries.MemoryStore, zone string, temp, hum, soil float64, ts time.Time) {
	t.Helper()
	r := model.Reading{
		Zone:          zone,
		SoilMoisture:  soil,
		Temperature:   temp,
		Humidity:      hum,
		ActuatorState: model.ActuatorOff,
		Timestamp:     ts,
	}
	if err := store.Append(context.Background(), model.NewRecord(r, ts)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestDaily_Summary(t *testing.T) {
	store := timeseries.NewMemoryStore()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	seed(t, store, "zone2", 20, 50, 30, day.Add(8*time.Hour))
	seed(t, store, "zone2", 22, 60, 40, day.Add(12*time.Hour))
	seed(t, store, "zone2", 24, 70, 50, day.Add(16*time.Hour))
	seed(t, store, "zone1", 99, 99, 99, day.Add(12*time.Hour))

	res, err := newEngine(store, time.UTC).Daily(context.Background(), "zone2", day)
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}

	s := res.Summary
	if s == nil {
		t.Fatal("Expected a summary")
	}
	if s.AvgTemp != 22 || s.MaxTemp != 24 || s.MinTemp != 20 || s.TotalReadings != 3 {
		t.Errorf("Unexpected temperature summary: %+v", s)
	}
	if s.AvgHum != 60 || s.MaxHum != 70 || s.MinHum != 50 || s.AvgSoil != 40 {
		t.Errorf("Unexpected humidity/soil summary: %+v", s)
	}
	if s.AvgGas != nil || s.AvgLight != nil {
		t.Error("Expected gas/light averages to be absent without data")
	}
	if res.Date != "2025-06-10" || res.Zone != "zone2" || len(res.Data) != 3 {
		t.Errorf("Unexpected result header: %s %s %d", res.Date, res.Zone, len(res.Data))
	}
	if res.Data[0].Temp != 20 || res.Data[2].Temp != 24 {
		t.Error("Expected series ordered by time")
	}
}

func TestDaily_Boundaries(t *testing.T) {
	store := timeseries.NewMemoryStore()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	seed(t, store, "zone1", 1, 0, 0, day)
	seed(t, store, "zone1", 2, 0, 0, day.Add(24*time.Hour-time.Millisecond))
	seed(t, store, "zone1", 3, 0, 0, day.Add(24*time.Hour))
	seed(t, store, "zone1", 4, 0, 0, day.Add(-time.Millisecond))

	res, err := newEngine(store, time.UTC).Daily(context.Background(), "zone1", day)
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}

	if len(res.Data) != 2 || res.Data[0].Temp != 1 || res.Data[1].Temp != 2 {
		t.Errorf("Expected only the two in-day readings, got %+v", res.Data)
	}
}

func TestDaily_LocalDayBoundaries(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	store := timeseries.NewMemoryStore()
	// 01:00 local on June 2
	seed(t, store, "zone1", 10, 0, 0, time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))

	engine := newEngine(store, loc)
	june1, _ := engine.ParseDate("2025-06-01")
	june2, _ := engine.ParseDate("2025-06-02")

	first, _ := engine.Daily(context.Background(), "zone1", june1)
	second, _ := engine.Daily(context.Background(), "zone1", june2)

	if len(first.Data) != 0 || len(second.Data) != 1 {
		t.Errorf("Expected reading on local June 2 only, got %d / %d", len(first.Data), len(second.Data))
	}
}

func TestDaily_EmptyHasNullSummary(t *testing.T) {
	res, err := newEngine(timeseries.NewMemoryStore(), time.UTC).Daily(context.Background(), "zone3", clock)
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}

	if res.Summary != nil {
		t.Errorf("Expected absent summary, got %+v", res.Summary)
	}
	if res.Data == nil || len(res.Data) != 0 {
		t.Errorf("Expected empty series, got %v", res.Data)
	}

	body, _ := json.Marshal(res)
	if !strings.Contains(string(body), `"summary":null`) || !strings.Contains(string(body), `"data":[]`) {
		t.Errorf("Unexpected JSON: %s", body)
	}
}

func TestDaily_InvalidZone(t *testing.T) {
	_, err := newEngine(timeseries.NewMemoryStore(), time.UTC).Daily(context.Background(), "zone7", clock)
	if !apperr.Is(err, apperr.InvalidZone) {
		t.Errorf("Expected InvalidZone, got %v", err)
	}
}

func TestDailyAll_EveryZonePresent(t *testing.T) {
	store := timeseries.NewMemoryStore()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	seed(t, store, "zone1", 20, 50, 30, day.Add(time.Hour))
	seed(t, store, "zone3", 30, 40, 20, day.Add(2*time.Hour))
	seed(t, store, "zone3", 32, 44, 22, day.Add(3*time.Hour))
	seed(t, store, "legacy", 1, 1, 1, day.Add(3*time.Hour))

	res, err := newEngine(store, time.UTC).DailyAll(context.Background(), day)
	if err != nil {
		t.Fatalf("DailyAll failed: %v", err)
	}

	if len(res.Zones) != 3 {
		t.Fatalf("Expected 3 zones, got %d", len(res.Zones))
	}
	if res.Zones["zone2"].Summary != nil {
		t.Error("Expected zone2 to have no summary")
	}
	if s := res.Zones["zone3"].Summary; s == nil || s.AvgTemp != 31 || s.TotalReadings != 2 {
		t.Errorf("Unexpected zone3 summary: %+v", s)
	}
}

func TestMonthly_GroupsByDay(t *testing.T) {
	store := timeseries.NewMemoryStore()
	seed(t, store, "zone1", 10, 40, 30, time.Date(2025, 5, 3, 6, 0, 0, 0, time.UTC))
	seed(t, store, "zone1", 20, 60, 30, time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC))
	seed(t, store, "zone1", 20, 60, 30, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	seed(t, store, "zone1", 20, 60, 30, time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC))
	seed(t, store, "zone1", 99, 99, 99, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	seed(t, store, "zone1", 99, 99, 99, time.Date(2025, 4, 30, 23, 59, 59, 0, time.UTC))

	res, err := newEngine(store, time.UTC).Monthly(context.Background(), "zone1", 2025, 5)
	if err != nil {
		t.Fatalf("Monthly failed: %v", err)
	}

	if len(res.Data) != 2 || res.Data[0].Date != "2025-05-01" || res.Data[1].Date != "2025-05-03" {
		t.Fatalf("Expected two ascending days without gap filling, got %+v", res.Data)
	}
	if res.Data[0].Readings != 3 || res.Data[1].Readings != 1 {
		t.Errorf("Unexpected per-day counts: %+v", res.Data)
	}

	s := res.Summary
	if s == nil {
		t.Fatal("Expected a monthly summary")
	}
	// mean of daily means (20, 10), not of the four records
	if s.OverallAvgTemp != 15 || s.OverallAvgHum != 50 || s.OverallAvgSoil != 30 {
		t.Errorf("Expected mean of daily means, got %+v", s)
	}
	if s.MaxTemp != 20 || s.MinTemp != 10 || s.TotalReadings != 4 || s.TotalDays != 2 {
		t.Errorf("Unexpected monthly summary: %+v", s)
	}
	if res.DaysInMonth != 31 {
		t.Errorf("Expected 31 days in May, got %d", res.DaysInMonth)
	}
}

func TestMonthly_RoundsDayAverages(t *testing.T) {
	store := timeseries.NewMemoryStore()
	day := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	seed(t, store, "zone1", 20, 10, 1, day.Add(time.Hour))
	seed(t, store, "zone1", 20, 10, 1, day.Add(2*time.Hour))
	seed(t, store, "zone1", 21, 10.1, 1, day.Add(3*time.Hour))

	res, _ := newEngine(store, time.UTC).Monthly(context.Background(), "zone1", 2025, 5)

	if res.Data[0].AvgTemp != 20.33 || res.Data[0].AvgHum != 10.03 {
		t.Errorf("Expected averages rounded to 2 places, got %+v", res.Data[0])
	}
	if res.Data[0].MaxTemp != 21 || res.Data[0].MaxHum != 10.1 {
		t.Errorf("Expected raw extremes, got %+v", res.Data[0])
	}
}

func TestMonthly_LeapYearFebruary(t *testing.T) {
	store := timeseries.NewMemoryStore()
	seed(t, store, "zone1", 20, 50, 30, time.Date(2024, 2, 29, 23, 59, 59, 999_000_000, time.UTC))
	seed(t, store, "zone1", 20, 50, 30, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC))
	engine := newEngine(store, time.UTC)

	leap, err := engine.Monthly(context.Background(), "zone1", 2024, 2)
	if err != nil {
		t.Fatalf("Monthly failed: %v", err)
	}
	if leap.DaysInMonth != 29 || len(leap.Data) != 1 || leap.Data[0].Date != "2024-02-29" {
		t.Errorf("Expected Feb 29 2024 included, got %d days %+v", leap.DaysInMonth, leap.Data)
	}

	common, err := engine.Monthly(context.Background(), "zone1", 2023, 2)
	if err != nil {
		t.Fatalf("Monthly failed: %v", err)
	}
	if common.DaysInMonth != 28 || len(common.Data) != 0 || common.Summary != nil {
		t.Errorf("Expected empty February 2023 with 28 days, got %d days %+v", common.DaysInMonth, common.Data)
	}
}

func TestMonthlyAll(t *testing.T) {
	store := timeseries.NewMemoryStore()
	seed(t, store, "zone2", 18, 50, 30, time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC))

	res, err := newEngine(store, time.UTC).MonthlyAll(context.Background(), 2025, 12)
	if err != nil {
		t.Fatalf("MonthlyAll failed: %v", err)
	}

	if len(res.Zones) != 3 || res.Zones["zone1"].Summary != nil {
		t.Errorf("Unexpected zones: %+v", res.Zones)
	}
	if s := res.Zones["zone2"].Summary; s == nil || s.TotalReadings != 1 || s.MaxTemp != 18 {
		t.Errorf("Unexpected zone2 summary: %+v", s)
	}
}

func TestMonthly_Validation(t *testing.T) {
	engine := newEngine(timeseries.NewMemoryStore(), time.UTC)
	ctx := context.Background()

	tests := []struct {
		name  string
		zone  string
		year  int
		month int
		kind  apperr.Kind
	}{
		{"year below range", "zone1", 1999, 2, apperr.InvalidYear},
		{"year above range", "zone1", 2101, 2, apperr.InvalidYear},
		{"month zero", "zone1", 2031, 0, apperr.InvalidMonth},
		{"month thirteen", "zone1", 2031, 13, apperr.InvalidMonth},
		{"unknown zone", "zone0", 2031, 2, apperr.InvalidZone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Monthly(ctx, tt.zone, tt.year, tt.month)
			if !apperr.Is(err, tt.kind) {
				t.Errorf("Expected %s, got %v", tt.kind, err)
			}
		})
	}

	if _, err := engine.MonthlyAll(ctx, 1999, 1); !apperr.Is(err, apperr.InvalidYear) {
		t.Errorf("Expected InvalidYear for all zones, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	engine := newEngine(timeseries.NewMemoryStore(), time.UTC)

	today, err := engine.ParseDate("")
	if err != nil || !today.Equal(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected today's midnight, got %v (%v)", today, err)
	}

	for _, bad := range []string{"2025-02-30", "15/06/2025", "tomorrow"} {
		if _, err := engine.ParseDate(bad); !apperr.Is(err, apperr.InvalidDate) {
			t.Errorf("Expected InvalidDate for %q, got %v", bad, err)
		}
	}
}

func TestParseYearMonth(t *testing.T) {
	engine := newEngine(timeseries.NewMemoryStore(), time.UTC)

	y, m, err := engine.ParseYearMonth("", "")
	if err != nil || y != 2025 || m != 6 {
		t.Errorf("Expected current month, got %d-%d (%v)", y, m, err)
	}
	if _, _, err := engine.ParseYearMonth("twenty", "1"); !apperr.Is(err, apperr.InvalidYear) {
		t.Errorf("Expected InvalidYear, got %v", err)
	}
	if _, _, err := engine.ParseYearMonth("2025", "may"); !apperr.Is(err, apperr.InvalidMonth) {
		t.Errorf("Expected InvalidMonth, got %v", err)
	}
}

func TestQueries_Idempotent(t *testing.T) {
	store := timeseries.NewMemoryStore()
	seed(t, store, "zone1", 21.37, 55.55, 31.11, time.Date(2025, 6, 3, 4, 5, 6, 0, time.UTC))
	seed(t, store, "zone1", 19.91, 51.05, 29.99, time.Date(2025, 6, 4, 4, 5, 6, 0, time.UTC))
	engine := newEngine(store, time.UTC)
	ctx := context.Background()

	m1, _ := engine.Monthly(ctx, "zone1", 2025, 6)
	m2, _ := engine.Monthly(ctx, "zone1", 2025, 6)
	if !reflect.DeepEqual(m1, m2) {
		t.Error("Expected identical monthly results")
	}

	d1, _ := engine.DailyAll(ctx, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	d2, _ := engine.DailyAll(ctx, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	if !reflect.DeepEqual(d1, d2) {
		t.Error("Expected identical daily results")
	}
}

var errReset = errors.New("connection reset")

type brokenStore struct{}

func (brokenStore) Append(context.Context, model.Record) error { return errReset }

func (brokenStore) QueryRange(context.Context, string, time.Time, time.Time) ([]model.Record, error) {
	return nil, errReset
}

func (brokenStore) QueryRangeAllZones(context.Context, time.Time, time.Time) ([]model.Record, error) {
	return nil, errReset
}

func (brokenStore) Ping(context.Context) error { return errReset }

func TestQueries_StorageUnavailable(t *testing.T) {
	engine := newEngine(brokenStore{}, time.UTC)
	ctx := context.Background()

	if _, err := engine.Daily(ctx, "zone1", clock); !apperr.Is(err, apperr.StorageUnavailable) {
		t.Errorf("Expected StorageUnavailable from Daily, got %v", err)
	}
	if _, err := engine.MonthlyAll(ctx, 2025, 6); !apperr.Is(err, apperr.StorageUnavailable) {
		t.Errorf("Expected StorageUnavailable from MonthlyAll, got %v", err)
	}
}
