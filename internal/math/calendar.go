package math

import "time"

// Timestamps throughout the ledger are epoch milliseconds.

// FromMillis converts epoch milliseconds to a time in loc.
func FromMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}

// StartOfDay returns the first millisecond of the calendar day containing ms.
func StartOfDay(ms int64, loc *time.Location) int64 {
	t := FromMillis(ms, loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UnixMilli()
}

// EndOfDay returns the last millisecond of the calendar day of day.
func EndOfDay(day time.Time, loc *time.Location) int64 {
	y, m, d := day.In(loc).Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return next.UnixMilli() - 1
}

// ParseDay parses a YYYY-MM-DD calendar day in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, loc)
}
