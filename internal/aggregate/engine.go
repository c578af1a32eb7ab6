// Package aggregate computes daily and monthly rollups from the time-series
// history. Results are recomputed from storage on every call.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/septivank/farm-telemetry/internal/apperr"
	"github.com/septivank/farm-telemetry/internal/metrics"
	"github.com/septivank/farm-telemetry/internal/model"
	"github.com/septivank/farm-telemetry/internal/timeseries"
	"github.com/septivank/farm-telemetry/tools/timeparser"
)

const (
	MinYear = 2000
	MaxYear = 2100
)

// Engine answers daily and monthly queries. Day boundaries are computed in
// the engine's location.
type Engine struct {
	store timeseries.Store
	zones *model.Zones
	loc   *time.Location
	now   func() time.Time
}

// NewEngine creates an engine reading from store.
func NewEngine(store timeseries.Store, zones *model.Zones, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{store: store, zones: zones, loc: loc, now: time.Now}
}

// WithClock replaces the clock used for default dates.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ParseDate parses YYYY-MM-DD in the engine location. An empty string
// means today.
func (e *Engine) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		y, m, d := e.now().In(e.loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, e.loc), nil
	}
	t, err := timeparser.ParseDate(s, e.loc)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.InvalidDate, "Date must be in YYYY-MM-DD format", err)
	}
	return t, nil
}

// ParseYearMonth parses query values; empty values mean the current year or
// month. Range checks happen in Monthly.
func (e *Engine) ParseYearMonth(yearStr, monthStr string) (int, int, error) {
	now := e.now().In(e.loc)
	year, month := now.Year(), int(now.Month())

	if s := strings.TrimSpace(yearStr); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperr.Wrap(apperr.InvalidYear, fmt.Sprintf("Year must be between %d and %d", MinYear, MaxYear), err)
		}
		year = y
	}
	if s := strings.TrimSpace(monthStr); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperr.Wrap(apperr.InvalidMonth, "Month must be between 1 and 12", err)
		}
		month = m
	}
	return year, month, nil
}

// DayWindow returns [00:00:00.000, 23:59:59.999] of date's calendar day in loc.
func DayWindow(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
	return start, end
}

// MonthWindow returns the first day 00:00:00.000 to the last day 23:59:59.999 in loc.
func MonthWindow(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := time.Date(year, month+1, 1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
	return start, end
}

// DaysInMonth accounts for leap years.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Daily returns the readings of zone on date's calendar day plus a summary.
func (e *Engine) Daily(ctx context.Context, zone string, date time.Time) (*DailyResult, error) {
	timer := prometheus.NewTimer(metrics.AggregationDuration.WithLabelValues("daily"))
	defer timer.ObserveDuration()

	name, err := e.resolveZone(zone)
	if err != nil {
		return nil, err
	}

	start, end := DayWindow(date, e.loc)
	recs, err := e.store.QueryRange(ctx, name, start, end)
	if err != nil {
		return nil, storageError(err)
	}

	return &DailyResult{
		Zone:    name,
		ZoneID:  e.zones.ID(name),
		Date:    start.Format(timeparser.DateLayout),
		ZoneDay: summarizeDay(recs),
	}, nil
}

// DailyAll runs the daily view independently for every zone.
func (e *Engine) DailyAll(ctx context.Context, date time.Time) (*DailyAllResult, error) {
	timer := prometheus.NewTimer(metrics.AggregationDuration.WithLabelValues("daily_all"))
	defer timer.ObserveDuration()

	start, end := DayWindow(date, e.loc)
	recs, err := e.store.QueryRangeAllZones(ctx, start, end)
	if err != nil {
		return nil, storageError(err)
	}

	byZone := e.splitByZone(recs)
	out := &DailyAllResult{
		Date:  start.Format(timeparser.DateLayout),
		Zones: make(map[string]ZoneDay, len(byZone)),
	}
	for _, name := range e.zones.Names() {
		out.Zones[name] = summarizeDay(byZone[name])
	}
	return out, nil
}

// Monthly returns per-day summaries of zone for the calendar month plus an
// overall summary.
func (e *Engine) Monthly(ctx context.Context, zone string, year, month int) (*MonthlyResult, error) {
	timer := prometheus.NewTimer(metrics.AggregationDuration.WithLabelValues("monthly"))
	defer timer.ObserveDuration()

	name, err := e.resolveZone(zone)
	if err != nil {
		return nil, err
	}
	if err := checkYearMonth(year, month); err != nil {
		return nil, err
	}

	start, end := MonthWindow(year, time.Month(month), e.loc)
	recs, err := e.store.QueryRange(ctx, name, start, end)
	if err != nil {
		return nil, storageError(err)
	}

	return &MonthlyResult{
		Zone:        name,
		ZoneID:      e.zones.ID(name),
		Year:        year,
		Month:       month,
		DaysInMonth: DaysInMonth(year, time.Month(month)),
		ZoneMonth:   summarizeMonth(recs, e.loc),
	}, nil
}

// MonthlyAll runs the monthly view independently for every zone.
func (e *Engine) MonthlyAll(ctx context.Context, year, month int) (*MonthlyAllResult, error) {
	timer := prometheus.NewTimer(metrics.AggregationDuration.WithLabelValues("monthly_all"))
	defer timer.ObserveDuration()

	if err := checkYearMonth(year, month); err != nil {
		return nil, err
	}

	start, end := MonthWindow(year, time.Month(month), e.loc)
	recs, err := e.store.QueryRangeAllZones(ctx, start, end)
	if err != nil {
		return nil, storageError(err)
	}

	byZone := e.splitByZone(recs)
	out := &MonthlyAllResult{
		Year:        year,
		Month:       month,
		DaysInMonth: DaysInMonth(year, time.Month(month)),
		Zones:       make(map[string]ZoneMonth, len(byZone)),
	}
	for _, name := range e.zones.Names() {
		out.Zones[name] = summarizeMonth(byZone[name], e.loc)
	}
	return out, nil
}

func (e *Engine) resolveZone(zone string) (string, error) {
	name, ok := e.zones.Resolve(zone)
	if !ok {
		return "", apperr.New(apperr.InvalidZone, fmt.Sprintf("Zone must be one of %s", strings.Join(e.zones.Names(), ", ")))
	}
	return name, nil
}

// splitByZone keeps per-zone order and drops zones outside the configured set.
func (e *Engine) splitByZone(recs []model.Record) map[string][]model.Record {
	out := make(map[string][]model.Record)
	for _, rec := range recs {
		if e.zones.Contains(rec.Reading.Zone) {
			out[rec.Reading.Zone] = append(out[rec.Reading.Zone], rec)
		}
	}
	return out
}

func checkYearMonth(year, month int) error {
	if year < MinYear || year > MaxYear {
		return apperr.New(apperr.InvalidYear, fmt.Sprintf("Year must be between %d and %d", MinYear, MaxYear))
	}
	if month < 1 || month > 12 {
		return apperr.New(apperr.InvalidMonth, "Month must be between 1 and 12")
	}
	return nil
}

func storageError(err error) error {
	if apperr.Is(err, apperr.StorageUnavailable) {
		return err
	}
	return apperr.Unavailable(err)
}

func summarizeDay(recs []model.Record) ZoneDay {
	day := ZoneDay{Data: make([]SeriesPoint, 0, len(recs))}
	var acc Accumulator
	for _, rec := range recs {
		r := rec.Reading
		day.Data = append(day.Data, SeriesPoint{
			Time:  r.Timestamp,
			Soil:  r.SoilMoisture,
			Temp:  r.Temperature,
			Hum:   r.Humidity,
			Gas:   r.GasLevel,
			Light: r.LightLevel,
			Relay: r.ActuatorState,
		})
		acc.Add(r)
	}
	day.Summary = acc.DailySummary()
	return day
}

// summarizeMonth groups records by calendar day in loc, one pass over recs.
func summarizeMonth(recs []model.Record, loc *time.Location) ZoneMonth {
	days := make(map[string]*Accumulator)
	for _, rec := range recs {
		key := rec.Reading.Timestamp.In(loc).Format(timeparser.DateLayout)
		acc, ok := days[key]
		if !ok {
			acc = &Accumulator{}
			days[key] = acc
		}
		acc.Add(rec.Reading)
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ZoneMonth{Data: make([]DayEntry, 0, len(keys))}
	var month monthAccumulator
	for _, k := range keys {
		out.Data = append(out.Data, days[k].dayEntry(k))
		month.addDay(days[k])
	}
	out.Summary = month.summary()
	return out
}
