/*
Package payroll derives earnings from shift assignments.

PURPOSE:
  Answers "how much did I earn this month, and how much of it so far?" from
  a day schedule and the settings record. Pure: callers pass snapshots
  loaded from the repositories.

PER-SHIFT AMOUNT:
  If normalHours > 0 or overtimeHours > 0:
    amount = normalHours * hourlyRate + overtimeHours * hourlyRate * overtimeMultiplier
  Otherwise (legacy shifts):
    amount = hours * hourlyRate

  overtimeMultiplier defaults to 1.5.

TOTALS:
  MonthlyTotal:     every assignment dated in the target month
  MonthToDateTotal: those of them dated in today's month on or before today

  Viewing a month other than today's therefore gives a zero month-to-date.

DEGRADATION:
  Unknown shift ids (deleted definitions) and unparseable date keys are
  skipped. Special dates never change the rate.

EXAMPLE:
  hourlyRate 100, shift {normalHours 6, overtimeHours 2}:
  6*100 + 2*100*1.5 = 900
*/
package payroll

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shiftbook/shift"
)

// Input is everything one calculation needs.
type Input struct {
	Schedule shift.DaySchedule
	Settings *shift.Settings

	// SpecialDates is accepted for symmetry with availability; it does not
	// affect amounts.
	SpecialDates shift.SpecialDates

	Year  int
	Month time.Month

	// Today is the month-to-date cutoff (inclusive).
	Today time.Time
}

// DayEarning is the billed amount of one day.
type DayEarning struct {
	Date     shift.DateKey
	ShiftIDs []string
	Amount   decimal.Decimal
}

// Result holds the month's totals.
type Result struct {
	MonthlyTotal     decimal.Decimal
	MonthToDateTotal decimal.Decimal

	// Hours billed in the month by basis.
	NormalHours   decimal.Decimal
	OvertimeHours decimal.Decimal
	FallbackHours decimal.Decimal

	// Days lists billed days in date order.
	Days []DayEarning
}

// Calculate computes the totals for in.Year/in.Month.
func Calculate(in Input) Result {
	res := Result{
		MonthlyTotal:     decimal.Zero,
		MonthToDateTotal: decimal.Zero,
		NormalHours:      decimal.Zero,
		OvertimeHours:    decimal.Zero,
		FallbackHours:    decimal.Zero,
		Days:             []DayEarning{},
	}
	if len(in.Schedule) == 0 || in.Settings == nil || len(in.Settings.CustomShifts) == 0 {
		return res
	}

	rate := decimal.NewFromFloat(in.Settings.HourlyRate)
	multiplier := decimal.NewFromFloat(in.Settings.Multiplier())

	for key, ids := range in.Schedule {
		date, err := key.Time()
		if err != nil {
			continue
		}
		if date.Year() != in.Year || date.Month() != in.Month {
			continue
		}

		day := DayEarning{Date: key, Amount: decimal.Zero}
		for _, id := range ids {
			cs, ok := in.Settings.ShiftByID(id)
			if !ok {
				continue
			}
			day.Amount = day.Amount.Add(ShiftAmount(cs, rate, multiplier))
			day.ShiftIDs = append(day.ShiftIDs, id)

			if cs.HasSplit() {
				res.NormalHours = res.NormalHours.Add(decimal.NewFromFloat(cs.NormalHours))
				res.OvertimeHours = res.OvertimeHours.Add(decimal.NewFromFloat(cs.OvertimeHours))
			} else {
				res.FallbackHours = res.FallbackHours.Add(decimal.NewFromFloat(cs.Hours))
			}
		}
		if len(day.ShiftIDs) == 0 {
			continue
		}

		res.MonthlyTotal = res.MonthlyTotal.Add(day.Amount)
		if inMonthToDate(date, in.Today) {
			res.MonthToDateTotal = res.MonthToDateTotal.Add(day.Amount)
		}
		res.Days = append(res.Days, day)
	}

	sort.Slice(res.Days, func(i, j int) bool { return res.Days[i].Date < res.Days[j].Date })
	return res
}

// ShiftAmount is the pay for one assignment of cs.
func ShiftAmount(cs shift.CustomShift, rate, multiplier decimal.Decimal) decimal.Decimal {
	if cs.HasSplit() {
		normal := decimal.NewFromFloat(cs.NormalHours).Mul(rate)
		overtime := decimal.NewFromFloat(cs.OvertimeHours).Mul(rate).Mul(multiplier)
		return normal.Add(overtime)
	}
	return decimal.NewFromFloat(cs.Hours).Mul(rate)
}

func inMonthToDate(date, today time.Time) bool {
	return shift.SameMonth(date, today) && date.Day() <= today.Day()
}
