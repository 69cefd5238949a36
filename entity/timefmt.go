package entity

import (
	"fmt"
	"time"
)

// TimeFormat is how timestamps are written to records: ISO-8601 without
// zone, microsecond precision. Values are UTC.
const TimeFormat = "2006-01-02T15:04:05.000000"

// parseFormat accepts the written form and also timestamps whose
// fractional part is shorter or absent.
const parseFormat = "2006-01-02T15:04:05.999999"

// FormatTime renders t in TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses record timestamp text. The result is UTC, truncated to
// microseconds so that ParseTime(FormatTime(t)) == t for any t produced by
// this package.
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(parseFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.Truncate(time.Microsecond), nil
}

// stamp normalises a clock reading to what survives a record round trip.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
