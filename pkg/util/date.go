package util

import (
	"strconv"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30) used for trading-day boundaries.
var IST = time.FixedZone("IST", 5*3600+30*60)

// DateLayout is the calendar date format at the API boundary.
const DateLayout = "2006-01-02"

// StartOfDay truncates t to midnight of its IST calendar day.
func StartOfDay(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IST)
}

// Today returns the start of the current IST day.
func Today(now time.Time) time.Time { return StartOfDay(now) }

// ParseDate parses YYYY-MM-DD as an IST calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, IST)
}

// ParseTime tries RFC3339, a plain date, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := ParseDate(s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// SameDay reports whether a and b fall on the same IST calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}
