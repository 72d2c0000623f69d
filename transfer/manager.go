package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/warp/shiftbook/logfields"
	"github.com/warp/shiftbook/metrics"
	"github.com/warp/shiftbook/repository"
	"github.com/warp/shiftbook/shift"
)

// =============================================================================
// ERRORS
// =============================================================================

// CollectionError is the failure of one collection during import.
type CollectionError struct {
	Collection shift.Collection
	Err        error
}

func (e CollectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collection, e.Err)
}

// ImportError aggregates every failed collection of one import.
type ImportError struct {
	Failures []CollectionError
}

func (e *ImportError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return "import failed for " + strings.Join(parts, "; ")
}

func (e *ImportError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// ImportReport describes what an import did.
type ImportReport struct {
	Version string             `json:"version"`
	Applied []shift.Collection `json:"applied"`
	Failed  []shift.Collection `json:"failed"`
	Skipped []shift.Collection `json:"skipped"`
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager exports and imports the full data set through the repositories.
type Manager struct {
	store    shift.Store
	repos    *repository.Set
	logger   *slog.Logger
	recorder metrics.Recorder
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = logfields.OrDefault(l) }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(m *Manager) { m.recorder = metrics.OrNoop(r) }
}

// WithClock overrides the clock used for exportDate.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store shift.Store, repos *repository.Set, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		repos:    repos,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ExportAll snapshots schedule, special dates, settings and title.
//
// Settings go through the same backfill as a read; a store that never had a
// settings record exports a defaults-only record.
func (m *Manager) ExportAll(ctx context.Context) (Document, error) {
	schedule, err := m.repos.Schedule.ReadSchedule(ctx)
	if err != nil {
		return Document{}, err
	}
	special, err := m.repos.Schedule.ReadSpecialDates(ctx)
	if err != nil {
		return Document{}, err
	}
	settings, err := m.repos.Settings.ReadSettings(ctx)
	if err != nil {
		return Document{}, err
	}
	if settings == nil {
		defaults := shift.DefaultSettings(m.repos.Settings.DefaultCurrency())
		settings = &defaults
	}
	rawSettings, err := json.Marshal(settings)
	if err != nil {
		return Document{}, fmt.Errorf("encode settings: %w", err)
	}
	title, hasTitle, err := m.repos.Metadata.ReadTitle(ctx)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		Schedule:     schedule,
		SpecialDates: special,
		Settings:     rawSettings,
		ExportDate:   m.now().UTC().Format(time.RFC3339),
		Version:      FormatVersion,
	}
	if hasTitle {
		doc.ScheduleTitle = &title
	}
	return doc, nil
}

// ImportAll applies every field present in doc, replacing that part of the
// stored state. Absent fields are left untouched.
//
// All parts are attempted even when one fails. Failures come back as an
// *ImportError next to a report of what was applied.
func (m *Manager) ImportAll(ctx context.Context, doc Document) (ImportReport, error) {
	report := ImportReport{Version: doc.Version}

	switch {
	case doc.Version == "":
		m.logger.Warn("Import document has no version, importing field by field")
	case compareVersions(doc.Version, FormatVersion) > 0:
		m.logger.Warn("Import document is newer than this build, importing field by field",
			logfields.Version(doc.Version))
	}

	var failures []CollectionError
	apply := func(c shift.Collection, present bool, fn func() error) {
		if !present {
			report.Skipped = append(report.Skipped, c)
			return
		}
		if err := fn(); err != nil {
			m.recorder.IncImportFailure(string(c))
			m.logger.Error("Import failed for collection",
				logfields.Collection(string(c)),
				logfields.Error(err))
			failures = append(failures, CollectionError{Collection: c, Err: err})
			report.Failed = append(report.Failed, c)
			return
		}
		report.Applied = append(report.Applied, c)
	}

	apply(shift.CollectionSchedule, doc.Schedule != nil, func() error {
		return m.repos.Schedule.ReplaceSchedule(ctx, doc.Schedule)
	})
	apply(shift.CollectionSpecialDates, doc.SpecialDates != nil, func() error {
		return m.repos.Schedule.ReplaceSpecialDates(ctx, doc.SpecialDates)
	})
	apply(shift.CollectionSettings, doc.HasSettings(), func() error {
		settings, _, err := repository.MigrateSettings(doc.Settings, m.repos.Settings.DefaultCurrency())
		if err != nil {
			return shift.NewPersistenceError("import", shift.CollectionSettings, err)
		}
		return m.repos.Settings.WriteSettings(ctx, settings)
	})
	apply(shift.CollectionMetadata, doc.ScheduleTitle != nil, func() error {
		return m.repos.Metadata.WriteTitle(ctx, *doc.ScheduleTitle)
	})

	if len(failures) > 0 {
		return report, &ImportError{Failures: failures}
	}
	m.logger.Info("Import complete",
		logfields.Version(doc.Version),
		logfields.Count(len(report.Applied)))
	return report, nil
}

// Reset empties every collection, each in its own transaction. All
// collections are attempted.
func (m *Manager) Reset(ctx context.Context) error {
	var errs []error
	for _, c := range shift.Collections {
		err := m.store.RunTransaction(ctx, c, shift.ReadWrite, func(b shift.Bucket) error {
			return b.Clear(ctx)
		})
		if err != nil {
			errs = append(errs, shift.NewPersistenceError("clear", c, err))
		}
	}
	return errors.Join(errs...)
}
