// Package transfer exports and imports the complete data set as one JSON
// document, the unit of backup and restore.
package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/warp/shiftbook/shift"
)

// FormatVersion is stamped on every exported document.
const FormatVersion = "2.0"

// Document is the export/import unit.
//
// A nil field means "absent": import leaves that part of the stored state
// untouched. Export always fills every field.
type Document struct {
	Schedule      shift.DaySchedule  `json:"schedule"`
	SpecialDates  shift.SpecialDates `json:"specialDates"`
	Settings      json.RawMessage    `json:"settings"`
	ScheduleTitle *string            `json:"scheduleTitle"`
	ExportDate    string             `json:"exportDate"`
	Version       string             `json:"version"`
}

// HasSettings reports whether the document carries a settings record.
func (d Document) HasSettings() bool {
	s := strings.TrimSpace(string(d.Settings))
	return s != "" && s != "null"
}

// Decode reads a document from r.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode export document: %w", err)
	}
	return doc, nil
}

// Encode writes doc to w as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}
	return nil
}

// compareVersions compares dotted numeric versions. Missing or non-numeric
// parts count as zero.
func compareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for len(pa) < len(pb) {
		pa = append(pa, "0")
	}
	for len(pb) < len(pa) {
		pb = append(pb, "0")
	}
	for i := range pa {
		na, _ := strconv.Atoi(strings.TrimSpace(pa[i]))
		nb, _ := strconv.Atoi(strings.TrimSpace(pb[i]))
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
	}
	return 0
}
