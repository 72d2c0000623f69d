/*
handlers.go - HTTP API handlers for the shift calendar

PURPOSE:
  Exposes the repositories, the availability resolver, the payroll
  calculator and export/import to the calendar UI over loopback HTTP.

ENDPOINTS:
  Schedule:
    GET    /api/schedule                       Day schedule
    PUT    /api/schedule                       Replace day schedule
    POST   /api/schedule/recurrence            Assign shifts on a recurrence rule
    GET    /api/title                          Schedule title
    PUT    /api/title                          Set schedule title

  Special dates:
    GET    /api/special-dates                  Special date map
    PUT    /api/special-dates                  Replace special dates
    POST   /api/special-dates/{date}/toggle    Flip one date

  Settings:
    GET    /api/settings                       Settings record (defaults if none)
    PUT    /api/settings                       Replace settings record

  Derived:
    GET    /api/availability/{date}            Shifts assignable on a date
    GET    /api/payroll?month=YYYY-MM          Month earnings

  Data:
    GET    /api/export                         Export document
    POST   /api/import                         Import document
    POST   /api/reset                          Clear all data

ARCHITECTURE:
  Handler holds no cached domain state. Every request reads what it needs
  from the repositories, so the UI always sees the stored truth.

ERROR HANDLING:
  - 400: Invalid date key, invalid settings, bad recurrence rule, bad JSON
  - 207: Import applied only partly
  - 503: Store unavailable
  - 500: Anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/shiftbook/availability"
	"github.com/warp/shiftbook/logfields"
	"github.com/warp/shiftbook/payroll"
	"github.com/warp/shiftbook/recurrence"
	"github.com/warp/shiftbook/repository"
	"github.com/warp/shiftbook/shift"
	"github.com/warp/shiftbook/transfer"
)

// monthLayout is the ?month= parameter format.
const monthLayout = "2006-01"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    shift.Store
	Repos    *repository.Set
	Transfer *transfer.Manager
	Logger   *slog.Logger

	// Now is the clock for month-to-date and the default payroll month.
	Now func() time.Time
}

// NewHandler creates a handler over store and its repositories.
func NewHandler(store shift.Store, repos *repository.Set, manager *transfer.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Repos:    repos,
		Transfer: manager,
		Logger:   logfields.OrDefault(logger),
		Now:      time.Now,
	}
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule returns the day schedule.
// GET /api/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.Repos.Schedule.ReadSchedule(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to read schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// PutSchedule replaces the day schedule.
// PUT /api/schedule
func (h *Handler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	var schedule shift.DaySchedule
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if schedule == nil {
		schedule = shift.DaySchedule{}
	}
	if err := h.Repos.Schedule.ReplaceSchedule(r.Context(), schedule); err != nil {
		h.writeDomainError(w, "Failed to replace schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyRecurrence assigns shifts on each occurrence of a rule.
// POST /api/schedule/recurrence
func (h *Handler) ApplyRecurrence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RecurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	schedule, err := h.Repos.Schedule.ReadSchedule(ctx)
	if err != nil {
		h.writeDomainError(w, "Failed to read schedule", err)
		return
	}
	settings, special, err := h.loadCalendar(r)
	if err != nil {
		h.writeDomainError(w, "Failed to load settings", err)
		return
	}

	res, err := recurrence.Apply(schedule, req.Request, settings, special)
	if err != nil {
		h.writeDomainError(w, "Invalid recurrence", err)
		return
	}

	if !req.DryRun && res.Added > 0 {
		if err := h.Repos.Schedule.ReplaceSchedule(ctx, res.Schedule); err != nil {
			h.writeDomainError(w, "Failed to save schedule", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, RecurrenceDTO{
		Added:   res.Added,
		Skipped: res.Skipped,
		DryRun:  req.DryRun,
	})
}

// GetTitle returns the schedule title ("" when unset).
// GET /api/title
func (h *Handler) GetTitle(w http.ResponseWriter, r *http.Request) {
	title, _, err := h.Repos.Metadata.ReadTitle(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to read title", err)
		return
	}
	writeJSON(w, http.StatusOK, TitleDTO{Title: title})
}

// PutTitle sets the schedule title.
// PUT /api/title
func (h *Handler) PutTitle(w http.ResponseWriter, r *http.Request) {
	var req TitleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Repos.Metadata.WriteTitle(r.Context(), req.Title); err != nil {
		h.writeDomainError(w, "Failed to write title", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// =============================================================================
// SPECIAL DATE HANDLERS
// =============================================================================

// GetSpecialDates returns the special date map.
// GET /api/special-dates
func (h *Handler) GetSpecialDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.Repos.Schedule.ReadSpecialDates(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to read special dates", err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

// PutSpecialDates replaces the special date map.
// PUT /api/special-dates
func (h *Handler) PutSpecialDates(w http.ResponseWriter, r *http.Request) {
	var dates shift.SpecialDates
	if err := json.NewDecoder(r.Body).Decode(&dates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if dates == nil {
		dates = shift.SpecialDates{}
	}
	if err := h.Repos.Schedule.ReplaceSpecialDates(r.Context(), dates); err != nil {
		h.writeDomainError(w, "Failed to replace special dates", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleSpecialDate flips one date's special flag.
// POST /api/special-dates/{date}/toggle
func (h *Handler) ToggleSpecialDate(w http.ResponseWriter, r *http.Request) {
	key, err := shift.ParseDateKey(chi.URLParam(r, "date"))
	if err != nil {
		h.writeDomainError(w, "Invalid date", err)
		return
	}
	special, err := h.Repos.Schedule.ToggleSpecialDate(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, "Failed to toggle special date", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleDTO{Date: key, Special: special})
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the settings record, or the defaults when none exists.
// GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Repos.Settings.ReadSettings(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to read settings", err)
		return
	}
	if settings == nil {
		writeJSON(w, http.StatusOK, SettingsDTO{
			Settings:  shift.DefaultSettings(h.Repos.Settings.DefaultCurrency()),
			Persisted: false,
		})
		return
	}
	writeJSON(w, http.StatusOK, SettingsDTO{Settings: *settings, Persisted: true})
}

// PutSettings replaces the settings record.
// PUT /api/settings
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings shift.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	repository.AssignShiftIDs(&settings)
	if err := h.Repos.Settings.WriteSettings(r.Context(), settings); err != nil {
		h.writeDomainError(w, "Failed to write settings", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsDTO{Settings: settings, Persisted: true})
}

// =============================================================================
// DERIVED DATA HANDLERS
// =============================================================================

// GetAvailability lists the shifts assignable on a date.
// GET /api/availability/{date}
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	key, err := shift.ParseDateKey(chi.URLParam(r, "date"))
	if err != nil {
		h.writeDomainError(w, "Invalid date", err)
		return
	}
	settings, special, err := h.loadCalendar(r)
	if err != nil {
		h.writeDomainError(w, "Failed to load settings", err)
		return
	}

	date, _ := key.Time()
	writeJSON(w, http.StatusOK, AvailabilityDTO{
		Date:    key,
		Weekday: shift.WeekdayKey(date.Weekday()),
		Special: special.IsSpecial(key),
		Shifts:  availability.Resolve(date, settings, special),
	})
}

// GetPayroll computes the earnings of a month (default: the current one).
// GET /api/payroll?month=YYYY-MM
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.Now()

	month := now
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.Parse(monthLayout, m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month, expected YYYY-MM", err)
			return
		}
		month = parsed
	}

	schedule, err := h.Repos.Schedule.ReadSchedule(ctx)
	if err != nil {
		h.writeDomainError(w, "Failed to read schedule", err)
		return
	}
	settings, special, err := h.loadCalendar(r)
	if err != nil {
		h.writeDomainError(w, "Failed to load settings", err)
		return
	}

	res := payroll.Calculate(payroll.Input{
		Schedule:     schedule,
		Settings:     settings,
		SpecialDates: special,
		Year:         month.Year(),
		Month:        month.Month(),
		Today:        now,
	})

	currency := h.Repos.Settings.DefaultCurrency()
	if settings != nil {
		currency = settings.Currency
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(month.Format(monthLayout), currency, res))
}

func toPayrollDTO(month, currency string, res payroll.Result) PayrollDTO {
	days := make([]DayEarningDTO, len(res.Days))
	for i, d := range res.Days {
		days[i] = DayEarningDTO{Date: d.Date, ShiftIDs: d.ShiftIDs, Amount: d.Amount.StringFixed(2)}
	}
	return PayrollDTO{
		Month:            month,
		Currency:         currency,
		MonthlyTotal:     res.MonthlyTotal.StringFixed(2),
		MonthToDateTotal: res.MonthToDateTotal.StringFixed(2),
		NormalHours:      res.NormalHours.String(),
		OvertimeHours:    res.OvertimeHours.String(),
		FallbackHours:    res.FallbackHours.String(),
		Days:             days,
	}
}

// loadCalendar reads the settings record and special dates used by the
// resolver and the calculator.
func (h *Handler) loadCalendar(r *http.Request) (*shift.Settings, shift.SpecialDates, error) {
	settings, err := h.Repos.Settings.ReadSettings(r.Context())
	if err != nil {
		return nil, nil, err
	}
	special, err := h.Repos.Schedule.ReadSpecialDates(r.Context())
	if err != nil {
		return nil, nil, err
	}
	return settings, special, nil
}

// =============================================================================
// DATA HANDLERS
// =============================================================================

// Export streams the export document as an attachment.
// GET /api/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Transfer.ExportAll(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to export", err)
		return
	}
	filename := fmt.Sprintf("shiftbook-%s.json", h.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := transfer.Encode(w, doc); err != nil {
		h.Logger.Error("Failed to write export", logfields.Error(err))
	}
}

// Import applies an export document.
// POST /api/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	doc, err := transfer.Decode(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid export document", err)
		return
	}

	report, err := h.Transfer.ImportAll(r.Context(), doc)
	var importErr *transfer.ImportError
	switch {
	case errors.As(err, &importErr):
		failures := make([]ImportFailureDTO, len(importErr.Failures))
		for i, f := range importErr.Failures {
			failures[i] = ImportFailureDTO{Collection: f.Collection, Error: f.Err.Error()}
		}
		writeJSON(w, http.StatusMultiStatus, ImportDTO{Report: report, Errors: failures})
	case err != nil:
		h.writeDomainError(w, "Failed to import", err)
	default:
		writeJSON(w, http.StatusOK, ImportDTO{Report: report})
	}
}

// Reset clears every collection.
// POST /api/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.Transfer.Reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset data", err)
		return
	}
	h.Logger.Warn("All data cleared")
	w.WriteHeader(http.StatusNoContent)
}

// Health reports store reachability.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	version, err := h.Store.SchemaVersion(r.Context())
	if err != nil {
		h.writeDomainError(w, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok", SchemaVersion: version})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps err onto a status code and logs server-side failures.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, logfields.Error(err))
	}

	resp := ErrorResponse{Error: message, Details: err.Error()}
	var verr *shift.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case shift.IsClientError(err), errors.Is(err, recurrence.ErrInvalidRule):
		return http.StatusBadRequest
	case shift.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
