// internal/domain/clock.go
package domain

import "time"

// Clock supplies the current time. Services take a Clock instead of calling
// time.Now so date-sensitive rules (due dates, overdue derivation) stay
// deterministic in tests.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// DateOnly truncates a timestamp to its calendar date. Overdue comparisons are
// date-granular: a loan is not overdue on its due date, only after it.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
