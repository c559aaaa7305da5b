package calendar

import (
	"time"

	"budgetcal/internal/core"
)

// Clock supplies the current moment to the date predicates.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock on every call.
var SystemClock Clock = ClockFunc(time.Now)

// CurrentYearMonth returns the clock's year and 1-based month.
func CurrentYearMonth(c Clock) (int, int) {
	now := c.Now()
	return now.Year(), int(now.Month())
}

// IsToday reports whether dateKey is the clock's current local date.
// Malformed keys are never today.
func IsToday(c Clock, dateKey string) bool {
	day, today, ok := localDays(c, dateKey)
	return ok && day.Equal(today)
}

// IsPast reports whether dateKey lies strictly before the clock's current
// local date. Malformed keys are never past.
func IsPast(c Clock, dateKey string) bool {
	day, today, ok := localDays(c, dateKey)
	return ok && day.Before(today)
}

func localDays(c Clock, dateKey string) (day, today time.Time, ok bool) {
	now := c.Now()
	loc := now.Location()
	day, err := time.ParseInLocation(core.DateLayout, dateKey, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	today = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return day, today, true
}
