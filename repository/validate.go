package repository

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/warp/shiftbook/shift"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so errors match the export document.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateSettings checks a settings record before it is written. The error
// is a *shift.ValidationError listing every failed rule.
func ValidateSettings(s shift.Settings) error {
	var fields []shift.FieldError

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, shift.FieldError{
				Field: trimRoot(fe.Namespace()),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
	}

	seen := make(map[string]bool, len(s.CustomShifts))
	for i, cs := range s.CustomShifts {
		if cs.ID != "" && seen[cs.ID] {
			fields = append(fields, shift.FieldError{
				Field: fmt.Sprintf("customShifts[%d].id", i),
				Rule:  "unique",
			})
		}
		seen[cs.ID] = true

		for day := range cs.ApplicableDays {
			if !knownDay(day) {
				fields = append(fields, shift.FieldError{
					Field: fmt.Sprintf("customShifts[%d].applicableDays", i),
					Rule:  "oneof",
					Param: string(day),
				})
			}
		}
	}

	if len(fields) > 0 {
		return &shift.ValidationError{Fields: fields}
	}
	return nil
}

func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func knownDay(d shift.DayKey) bool {
	for _, k := range shift.AllDayKeys {
		if d == k {
			return true
		}
	}
	return false
}

// AssignShiftIDs gives every custom shift without an id a fresh UUID and
// returns how many it assigned. The calendar UI creates shifts without ids.
func AssignShiftIDs(s *shift.Settings) int {
	n := 0
	for i := range s.CustomShifts {
		if strings.TrimSpace(s.CustomShifts[i].ID) == "" {
			s.CustomShifts[i].ID = uuid.NewString()
			n++
		}
	}
	return n
}
