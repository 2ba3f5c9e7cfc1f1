package state

import "time"

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

// DateKey formats t as a local calendar date, YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// IsStale reports whether a stored date key belongs to a day other than now's.
func IsStale(storedDateKey string, now time.Time) bool {
	return storedDateKey != DateKey(now)
}
