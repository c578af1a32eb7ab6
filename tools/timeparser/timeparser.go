package timeparser

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by query parameters.
const DateLayout = "2006-01-02"

// Accepted reading years. Later years cannot be encoded as RFC 3339.
const (
	MinReadingYear = 1970
	MaxReadingYear = 9999
)

// ParseReadingTimestamp attempts to parse a device timestamp with multiple formats.
// Layouts without a zone are interpreted in loc.
func ParseReadingTimestamp(dateStr string, loc *time.Location) (time.Time, error) {
	zoned := []string{
		time.RFC3339Nano, // Standard RFC3339, optional fraction
	}
	local := []string{
		"2006-01-02T15:04:05", // ISO without zone
		"2006-01-02 15:04:05",
		"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	}

	var lastErr error
	for _, format := range zoned {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	for _, format := range local {
		t, err := time.ParseInLocation(format, dateStr, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// FromEpoch converts a numeric device timestamp. Values above 1e12 are
// treated as milliseconds, smaller ones as seconds.
func FromEpoch(v float64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(int64(v))
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// InReadingRange reports whether t falls within the accepted reading years.
func InReadingRange(t time.Time) bool {
	y := t.UTC().Year()
	return y >= MinReadingYear && y <= MaxReadingYear
}

// ParseDate parses a YYYY-MM-DD date and returns local midnight of that day in loc.
func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", dateStr, err)
	}
	return t, nil
}

// IsWithinTolerance checks if the reading timestamp is within tolerance of received time
func IsWithinTolerance(readingTime, receivedTime time.Time, toleranceMinutes int) bool {
	diff := readingTime.Sub(receivedTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceMinutes)*time.Minute
}
