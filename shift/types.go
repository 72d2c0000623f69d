/*
Package shift provides the core data model for the shift calendar.

PURPOSE:
  Domain types shared by every other package: shift definitions, the day
  schedule, special dates and the settings record. The persistence contract
  (store.go), error taxonomy (errors.go) and date keys (date.go) live here
  too, so repositories, the resolver and the calculator only depend on this
  package.

KEY CONCEPTS IN THIS FILE (types.go):
  - CustomShift: a configurable work-period template (hours + eligible days)
  - DaySchedule: date key -> ordered shift ids assigned that day
  - SpecialDates: date key -> true for days flagged special
  - Settings: the single settings record (rates, currency, shift list)

INVARIANTS:
  1. A date key mapped to an empty list means "no shifts that day", exactly
     like an absent key. Normalize() drops such entries.
  2. Only true special-date entries carry meaning. Normalize() drops false.
  3. If NormalHours and OvertimeHours are both zero, Hours is the pay basis.

SEE ALSO:
  - store.go: Persistence contract
  - defaults.go: Built-in defaults used by settings backfill
*/
package shift

// =============================================================================
// SHIFT DEFINITION
// =============================================================================

// DayKey names an entry of CustomShift.ApplicableDays.
type DayKey string

const (
	Monday     DayKey = "monday"
	Tuesday    DayKey = "tuesday"
	Wednesday  DayKey = "wednesday"
	Thursday   DayKey = "thursday"
	Friday     DayKey = "friday"
	Saturday   DayKey = "saturday"
	Sunday     DayKey = "sunday"
	SpecialDay DayKey = "specialDay"
)

// AllDayKeys lists the weekdays followed by SpecialDay.
var AllDayKeys = []DayKey{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday, SpecialDay}

// ApplicableDays maps a day key to whether the shift may be assigned on it.
// A nil map means the shift predates day restrictions and applies everywhere.
type ApplicableDays map[DayKey]bool

// EveryDay returns ApplicableDays with every weekday and SpecialDay enabled.
func EveryDay() ApplicableDays {
	days := make(ApplicableDays, len(AllDayKeys))
	for _, d := range AllDayKeys {
		days[d] = true
	}
	return days
}

// CustomShift is a shift definition.
type CustomShift struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	StartTime string `json:"startTime,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"endTime,omitempty" validate:"omitempty,datetime=15:04"`

	Hours                  float64 `json:"hours" validate:"gte=0"`
	NormalHours            float64 `json:"normalHours,omitempty" validate:"gte=0"`
	OvertimeHours          float64 `json:"overtimeHours,omitempty" validate:"gte=0"`
	NormalAllowanceHours   float64 `json:"normalAllowanceHours,omitempty" validate:"gte=0"`
	OvertimeAllowanceHours float64 `json:"overtimeAllowanceHours,omitempty" validate:"gte=0"`

	Enabled        bool           `json:"enabled"`
	// nil means every day; an empty map means no day. Not omitempty so the
	// two survive a round trip.
	ApplicableDays ApplicableDays `json:"applicableDays"`
}

// HasSplit reports whether pay is computed from the normal/overtime split
// rather than from Hours.
func (s CustomShift) HasSplit() bool {
	return s.NormalHours > 0 || s.OvertimeHours > 0
}

// Days returns the effective applicable days, defaulting a missing map to
// EveryDay.
func (s CustomShift) Days() ApplicableDays {
	if s.ApplicableDays == nil {
		return EveryDay()
	}
	return s.ApplicableDays
}

// ShiftCombination is the deprecated pre-CustomShift template list. It is only
// read and written back for compatibility with older exports.
type ShiftCombination struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Shifts  []string `json:"shifts,omitempty"`
	Hours   float64  `json:"hours,omitempty"`
	Enabled bool     `json:"enabled"`
}

// =============================================================================
// SCHEDULE + SPECIAL DATES
// =============================================================================

// MaxShiftsPerDay is the UI convention for assignments per day. Storage does
// not enforce it.
const MaxShiftsPerDay = 3

// DaySchedule maps a date to the ordered shift ids assigned that day.
type DaySchedule map[DateKey][]string

// ShiftsOn returns the ids assigned on key (nil when none).
func (d DaySchedule) ShiftsOn(key DateKey) []string {
	return d[key]
}

// Normalize returns a copy without empty-list entries.
func (d DaySchedule) Normalize() DaySchedule {
	out := make(DaySchedule, len(d))
	for k, ids := range d {
		if len(ids) == 0 {
			continue
		}
		out[k] = append([]string(nil), ids...)
	}
	return out
}

// Clone returns a deep copy, empty entries included.
func (d DaySchedule) Clone() DaySchedule {
	out := make(DaySchedule, len(d))
	for k, ids := range d {
		out[k] = append([]string(nil), ids...)
	}
	return out
}

// SpecialDates maps a date to true when the day is special.
type SpecialDates map[DateKey]bool

// IsSpecial reports whether key is flagged. Absent and false are the same.
func (s SpecialDates) IsSpecial(key DateKey) bool {
	return s[key]
}

// Normalize returns a copy holding only the true entries.
func (s SpecialDates) Normalize() SpecialDates {
	out := make(SpecialDates, len(s))
	for k, v := range s {
		if v {
			out[k] = true
		}
	}
	return out
}

// =============================================================================
// SETTINGS
// =============================================================================

// DefaultOvertimeMultiplier applies when Settings.OvertimeMultiplier is unset.
const DefaultOvertimeMultiplier = 1.5

// SettingsSchemaVersion is the current version of the settings record shape.
// Records with a lower version go through repository.MigrateSettings on load.
const SettingsSchemaVersion = 2

// Settings is the single settings record.
type Settings struct {
	SchemaVersion      int      `json:"schemaVersion,omitempty"`
	BasicSalary        float64  `json:"basicSalary" validate:"gte=0"`
	HourlyRate         float64  `json:"hourlyRate" validate:"gte=0"`
	OvertimeMultiplier *float64 `json:"overtimeMultiplier,omitempty" validate:"omitempty,gte=0"`
	Currency           string   `json:"currency" validate:"required,iso4217"`

	CustomShifts []CustomShift `json:"customShifts" validate:"dive"`

	// Deprecated: kept for backward read compatibility only.
	ShiftCombinations []ShiftCombination `json:"shiftCombinations,omitempty"`
}

// Multiplier returns the overtime multiplier, defaulting to 1.5.
func (s *Settings) Multiplier() float64 {
	if s == nil || s.OvertimeMultiplier == nil {
		return DefaultOvertimeMultiplier
	}
	return *s.OvertimeMultiplier
}

// ShiftByID finds a shift definition. The bool is false when no shift has
// that id, which is normal for history referencing deleted shifts.
func (s *Settings) ShiftByID(id string) (CustomShift, bool) {
	if s == nil {
		return CustomShift{}, false
	}
	for _, cs := range s.CustomShifts {
		if cs.ID == id {
			return cs, true
		}
	}
	return CustomShift{}, false
}
