package shift

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE KEY - Calendar day identifier used as collection key
// =============================================================================

// DateLayout is the string form of a DateKey.
const DateLayout = "2006-01-02"

// DateKey is a calendar date in sortable YYYY-MM-DD form.
type DateKey string

// NewDateKey builds a key from calendar fields.
func NewDateKey(year int, month time.Month, day int) DateKey {
	return DateKeyOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateKeyOf returns the key for t's calendar day in t's location.
func DateKeyOf(t time.Time) DateKey {
	return DateKey(t.Format(DateLayout))
}

// ParseDateKey validates s and returns it as a DateKey.
func ParseDateKey(s string) (DateKey, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateKey, s)
	}
	return DateKey(s), nil
}

// Time returns the key as midnight UTC.
func (k DateKey) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, string(k))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateKey, string(k))
	}
	return t, nil
}

// Valid reports whether the key parses.
func (k DateKey) Valid() bool {
	_, err := k.Time()
	return err == nil
}

func (k DateKey) String() string { return string(k) }

// WeekdayKey maps a time.Weekday to its ApplicableDays key.
func WeekdayKey(wd time.Weekday) DayKey {
	switch wd {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// SameMonth reports whether a and b fall in the same calendar month and year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
