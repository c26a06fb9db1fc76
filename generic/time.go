package generic

import (
	"time"
)

// =============================================================================
// TIMESTAMPS - ISO-8601, millisecond precision, UTC
// =============================================================================

// TimestampLayout matches what browsers produce with Date.toISOString().
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(TimestampLayout)
}

// ParseTimestamp accepts full ISO-8601 timestamps and plain dates.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, TimestampLayout, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NextTimestamp returns a timestamp strictly after prev. It is now when the
// clock has moved past prev, otherwise prev plus one millisecond.
func NextTimestamp(prev string, now time.Time) string {
	now = now.UTC().Truncate(time.Millisecond)
	if p, ok := ParseTimestamp(prev); ok && !now.After(p) {
		return FormatTimestamp(p.Add(time.Millisecond))
	}
	return FormatTimestamp(now)
}
