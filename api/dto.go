/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures of the local calendar API. Schedule, special dates and
  settings travel in their stored shape (the UI already speaks it); computed
  results get dedicated response types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are decimal strings with two places ("900.00") so the UI never
  sees float rounding.

SEE ALSO:
  - handlers.go: Uses these types
  - transfer/document.go: Export document (served as is)
*/
package api

import (
	"github.com/warp/shiftbook/recurrence"
	"github.com/warp/shiftbook/shift"
	"github.com/warp/shiftbook/transfer"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SettingsDTO wraps the settings record. Persisted is false when nothing was
// stored yet and Settings holds the defaults.
type SettingsDTO struct {
	Settings  shift.Settings `json:"settings"`
	Persisted bool           `json:"persisted"`
}

// ToggleDTO is the result of flipping a special date.
type ToggleDTO struct {
	Date    shift.DateKey `json:"date"`
	Special bool          `json:"special"`
}

// TitleDTO carries the schedule title.
type TitleDTO struct {
	Title string `json:"title"`
}

// AvailabilityDTO lists the shifts assignable on one date.
type AvailabilityDTO struct {
	Date    shift.DateKey       `json:"date"`
	Weekday shift.DayKey        `json:"weekday"`
	Special bool                `json:"special"`
	Shifts  []shift.CustomShift `json:"shifts"`
}

// PayrollDTO is the earnings summary of one month.
type PayrollDTO struct {
	Month            string          `json:"month"`
	Currency         string          `json:"currency"`
	MonthlyTotal     string          `json:"monthlyTotal"`
	MonthToDateTotal string          `json:"monthToDateTotal"`
	NormalHours      string          `json:"normalHours"`
	OvertimeHours    string          `json:"overtimeHours"`
	FallbackHours    string          `json:"fallbackHours"`
	Days             []DayEarningDTO `json:"days"`
}

// DayEarningDTO is one billed day.
type DayEarningDTO struct {
	Date     shift.DateKey `json:"date"`
	ShiftIDs []string      `json:"shiftIds"`
	Amount   string        `json:"amount"`
}

// RecurrenceRequest assigns shifts on every occurrence of a rule.
type RecurrenceRequest struct {
	recurrence.Request
	DryRun bool `json:"dryRun,omitempty"`
}

// RecurrenceDTO reports a recurring assignment.
type RecurrenceDTO struct {
	Added   int               `json:"added"`
	Skipped []recurrence.Skip `json:"skipped"`
	DryRun  bool              `json:"dryRun"`
}

// ImportDTO is the response of an import. Errors is set on partial failure.
type ImportDTO struct {
	Report transfer.ImportReport `json:"report"`
	Errors []ImportFailureDTO    `json:"errors,omitempty"`
}

// ImportFailureDTO is one failed collection of an import.
type ImportFailureDTO struct {
	Collection shift.Collection `json:"collection"`
	Error      string           `json:"error"`
}

// HealthDTO is the health check response.
type HealthDTO struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schemaVersion"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string             `json:"error"`
	Details string             `json:"details,omitempty"`
	Fields  []shift.FieldError `json:"fields,omitempty"`
}
