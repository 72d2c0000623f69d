// Package availability decides which shift definitions may be assigned on a
// calendar date.
//
// Resolve is pure: it works on the settings and special dates the caller
// already loaded and never touches the store.
package availability

import (
	"time"

	"github.com/warp/shiftbook/shift"
)

// Resolve returns the enabled shifts assignable on date, in settings order.
//
// A shift qualifies when its applicableDays allows the date's weekday, or
// when the date is special and applicableDays allows specialDay. Shifts with
// no applicableDays at all apply every day.
func Resolve(date time.Time, settings *shift.Settings, special shift.SpecialDates) []shift.CustomShift {
	if settings == nil {
		return []shift.CustomShift{}
	}

	weekday := shift.WeekdayKey(date.Weekday())
	isSpecial := special.IsSpecial(shift.DateKeyOf(date))

	out := make([]shift.CustomShift, 0, len(settings.CustomShifts))
	for _, cs := range settings.CustomShifts {
		if !cs.Enabled {
			continue
		}
		days := cs.Days()
		if days[weekday] || (isSpecial && days[shift.SpecialDay]) {
			out = append(out, cs)
		}
	}
	return out
}

// ResolveKey is Resolve for a date key. An unparseable key has no available
// shifts.
func ResolveKey(key shift.DateKey, settings *shift.Settings, special shift.SpecialDates) []shift.CustomShift {
	t, err := key.Time()
	if err != nil {
		return []shift.CustomShift{}
	}
	return Resolve(t, settings, special)
}

// IsAvailable reports whether the shift with id may be assigned on key.
func IsAvailable(key shift.DateKey, id string, settings *shift.Settings, special shift.SpecialDates) bool {
	for _, cs := range ResolveKey(key, settings, special) {
		if cs.ID == id {
			return true
		}
	}
	return false
}
