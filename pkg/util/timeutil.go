package util

import "time"

// TimestampLayout is the layout used for every human-facing timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in loc. A nil loc means UTC; a zero t renders empty.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}
