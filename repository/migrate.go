package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/shiftbook/shift"
)

// settingsDoc is the loosest shape a stored or imported settings record can
// take. Pointer fields distinguish absent from zero.
type settingsDoc struct {
	SchemaVersion      int                      `json:"schemaVersion"`
	BasicSalary        float64                  `json:"basicSalary"`
	HourlyRate         float64                  `json:"hourlyRate"`
	OvertimeMultiplier *float64                 `json:"overtimeMultiplier"`
	Currency           *string                  `json:"currency"`
	CustomShifts       *[]customShiftDoc        `json:"customShifts"`
	ShiftCombinations  []shift.ShiftCombination `json:"shiftCombinations"`
}

// customShiftDoc shadows Enabled so shifts saved before the flag existed can
// be told apart from disabled ones.
type customShiftDoc struct {
	shift.CustomShift
	Enabled *bool `json:"enabled"`
}

// MigrateSettings decodes raw and brings it to shift.SettingsSchemaVersion.
// The bool reports whether anything was backfilled, in which case the caller
// should persist the result.
//
// Backfill rules:
//   - shiftCombinations missing or empty -> shift.DefaultShiftCombinations()
//   - currency missing or empty          -> defaultCurrency
//   - currency with stray case or spaces -> trimmed upper case
//
// A currency that is still not an ISO 4217 code is kept as is. ReadSettings
// returns it, but WriteSettings (and so import) rejects it.
//   - customShifts missing               -> []
//   - shift without an enabled flag      -> enabled
func MigrateSettings(raw []byte, defaultCurrency string) (shift.Settings, bool, error) {
	var doc settingsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return shift.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	if defaultCurrency == "" {
		defaultCurrency = shift.DefaultCurrency
	}

	changed := false
	out := shift.Settings{
		SchemaVersion:      doc.SchemaVersion,
		BasicSalary:        doc.BasicSalary,
		HourlyRate:         doc.HourlyRate,
		OvertimeMultiplier: doc.OvertimeMultiplier,
		ShiftCombinations:  doc.ShiftCombinations,
	}

	if len(out.ShiftCombinations) == 0 {
		out.ShiftCombinations = shift.DefaultShiftCombinations()
		changed = true
	}

	switch {
	case doc.Currency == nil || strings.TrimSpace(*doc.Currency) == "":
		out.Currency = defaultCurrency
		changed = true
	default:
		out.Currency = strings.ToUpper(strings.TrimSpace(*doc.Currency))
		if out.Currency != *doc.Currency {
			changed = true
		}
	}

	if doc.CustomShifts == nil {
		out.CustomShifts = []shift.CustomShift{}
		changed = true
	} else {
		out.CustomShifts = make([]shift.CustomShift, len(*doc.CustomShifts))
		for i, cs := range *doc.CustomShifts {
			s := cs.CustomShift
			if cs.Enabled == nil {
				s.Enabled = true
				changed = true
			} else {
				s.Enabled = *cs.Enabled
			}
			out.CustomShifts[i] = s
		}
	}

	if out.SchemaVersion < shift.SettingsSchemaVersion {
		out.SchemaVersion = shift.SettingsSchemaVersion
		changed = true
	}

	return out, changed, nil
}
