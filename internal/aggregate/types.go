package aggregate

import (
	"time"

	"github.com/septivank/farm-telemetry/internal/model"
)

// SeriesPoint is one raw reading in a daily chart series. Values are never rounded.
type SeriesPoint struct {
	Time  time.Time           `json:"time"`
	Soil  float64             `json:"soil"`
	Temp  float64             `json:"temp"`
	Hum   float64             `json:"hum"`
	Gas   *float64            `json:"gas"`
	Light *float64            `json:"light"`
	Relay model.ActuatorState `json:"relay"`
}

// DailySummary summarizes one zone over one day.
type DailySummary struct {
	AvgSoil       float64  `json:"avgSoil"`
	AvgTemp       float64  `json:"avgTemp"`
	AvgHum        float64  `json:"avgHum"`
	AvgGas        *float64 `json:"avgGas"`
	AvgLight      *float64 `json:"avgLight"`
	MaxTemp       float64  `json:"maxTemp"`
	MinTemp       float64  `json:"minTemp"`
	MaxHum        float64  `json:"maxHum"`
	MinHum        float64  `json:"minHum"`
	TotalReadings int      `json:"totalReadings"`
}

// ZoneDay is the daily view of one zone. Summary is nil when there is no data.
type ZoneDay struct {
	Data    []SeriesPoint `json:"data"`
	Summary *DailySummary `json:"summary"`
}

// DailyResult is the daily view of a single zone.
type DailyResult struct {
	Zone   string `json:"zone"`
	ZoneID string `json:"zoneId"`
	Date   string `json:"date"`
	ZoneDay
}

// DailyAllResult is the daily view of every zone.
type DailyAllResult struct {
	Date  string             `json:"date"`
	Zones map[string]ZoneDay `json:"zones"`
}

// DayEntry summarizes one calendar day with data.
type DayEntry struct {
	Date     string   `json:"date"`
	AvgSoil  float64  `json:"avgSoil"`
	AvgTemp  float64  `json:"avgTemp"`
	AvgHum   float64  `json:"avgHum"`
	AvgGas   *float64 `json:"avgGas"`
	AvgLight *float64 `json:"avgLight"`
	MaxTemp  float64  `json:"maxTemp"`
	MinTemp  float64  `json:"minTemp"`
	MaxHum   float64  `json:"maxHum"`
	MinHum   float64  `json:"minHum"`
	Readings int      `json:"readings"`
}

// MonthlySummary summarizes one zone over a calendar month.
type MonthlySummary struct {
	TotalDays      int     `json:"totalDays"`
	OverallAvgTemp float64 `json:"overallAvgTemp"`
	OverallAvgHum  float64 `json:"overallAvgHum"`
	OverallAvgSoil float64 `json:"overallAvgSoil"`
	MaxTemp        float64 `json:"maxTemp"`
	MinTemp        float64 `json:"minTemp"`
	TotalReadings  int     `json:"totalReadings"`
}

// ZoneMonth is the monthly view of one zone. Days without readings are
// absent from Data; Summary is nil when no day has data.
type ZoneMonth struct {
	Data    []DayEntry      `json:"data"`
	Summary *MonthlySummary `json:"summary"`
}

// MonthlyResult is the monthly view of a single zone.
type MonthlyResult struct {
	Zone        string `json:"zone"`
	ZoneID      string `json:"zoneId"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	DaysInMonth int    `json:"daysInMonth"`
	ZoneMonth
}

// MonthlyAllResult is the monthly view of every zone.
type MonthlyAllResult struct {
	Year        int                  `json:"year"`
	Month       int                  `json:"month"`
	DaysInMonth int                  `json:"daysInMonth"`
	Zones       map[string]ZoneMonth `json:"zones"`
}
