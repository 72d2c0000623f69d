// Package recurrence fills a day schedule from an RFC 5545 recurrence rule.
//
// Expansion is pure: Apply returns a new schedule and never writes it. The
// caller persists the result through repository.ScheduleRepository.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"github.com/warp/shiftbook/availability"
	"github.com/warp/shiftbook/shift"
)

// ErrInvalidRule is returned for an unparseable or unbounded rule.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// maxOccurrences bounds one expansion.
const maxOccurrences = 3660

// Request describes one recurring assignment.
type Request struct {
	// Rule is an RRULE body such as "FREQ=WEEKLY;BYDAY=MO,WE".
	// A leading "RRULE:" is accepted.
	Rule string `json:"rule"`

	// Start anchors the rule (DTSTART).
	Start shift.DateKey `json:"start"`

	// Until is the last date considered (inclusive).
	Until shift.DateKey `json:"until"`

	ShiftIDs []string `json:"shiftIds"`
}

// Skip records an occurrence that was not assigned.
type Skip struct {
	Date    shift.DateKey `json:"date"`
	ShiftID string        `json:"shiftId"`
	Reason  string        `json:"reason"`
}

const (
	ReasonUnavailable = "unavailable"
	ReasonDayFull     = "day_full"
	ReasonDuplicate   = "already_assigned"
)

// Result is the outcome of Apply.
type Result struct {
	Schedule shift.DaySchedule `json:"schedule"`
	Added    int               `json:"added"`
	Skipped  []Skip            `json:"skipped"`
}

// Expand returns the occurrence dates of rule anchored at start, between
// start and until inclusive.
func Expand(rule string, start, until shift.DateKey) ([]shift.DateKey, error) {
	from, err := start.Time()
	if err != nil {
		return nil, err
	}
	to, err := until.Time()
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: until %s is before start %s", ErrInvalidRule, until, start)
	}

	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	opt.Dtstart = from

	rr, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	set := rrule.Set{}
	set.RRule(rr)

	// Between is exclusive of the upper bound's time of day, so extend to
	// the end of the last day.
	instances := set.Between(from, to.Add(24*time.Hour-time.Nanosecond), true)
	if len(instances) > maxOccurrences {
		return nil, fmt.Errorf("%w: %d occurrences exceeds limit %d", ErrInvalidRule, len(instances), maxOccurrences)
	}

	out := make([]shift.DateKey, 0, len(instances))
	for _, t := range instances {
		out = append(out, shift.DateKeyOf(t))
	}
	return out, nil
}

// Apply expands req and appends its shift ids on every occurrence.
//
// An id is skipped on a date when the shift is not available there, is
// already assigned that day, or the day already holds MaxShiftsPerDay ids.
// The input schedule is not modified.
func Apply(schedule shift.DaySchedule, req Request, settings *shift.Settings, special shift.SpecialDates) (Result, error) {
	if len(req.ShiftIDs) == 0 {
		return Result{}, fmt.Errorf("%w: no shift ids", ErrInvalidRule)
	}
	dates, err := Expand(req.Rule, req.Start, req.Until)
	if err != nil {
		return Result{}, err
	}

	res := Result{Schedule: schedule.Clone(), Skipped: []Skip{}}
	for _, date := range dates {
		available := make(map[string]bool)
		for _, cs := range availability.ResolveKey(date, settings, special) {
			available[cs.ID] = true
		}

		day := res.Schedule[date]
		for _, id := range req.ShiftIDs {
			switch {
			case !available[id]:
				res.Skipped = append(res.Skipped, Skip{Date: date, ShiftID: id, Reason: ReasonUnavailable})
			case contains(day, id):
				res.Skipped = append(res.Skipped, Skip{Date: date, ShiftID: id, Reason: ReasonDuplicate})
			case len(day) >= shift.MaxShiftsPerDay:
				res.Skipped = append(res.Skipped, Skip{Date: date, ShiftID: id, Reason: ReasonDayFull})
			default:
				day = append(day, id)
				res.Added++
			}
		}
		if len(day) > 0 {
			res.Schedule[date] = day
		}
	}
	return res, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
