package transfer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shiftbook/metrics"
	"github.com/warp/shiftbook/repository"
	"github.com/warp/shiftbook/shift"
	"github.com/warp/shiftbook/shift/store"
	"github.com/warp/shiftbook/transfer"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var exportTime = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

type importFailures struct {
	metrics.NoopRecorder
	collections []string
}

func (r *importFailures) IncImportFailure(c string) { r.collections = append(r.collections, c) }

func newManager(t *testing.T, s shift.Store, opts ...transfer.Option) (*transfer.Manager, *repository.Set) {
	t.Helper()
	repos := repository.New(s, repository.WithDefaultCurrency("EUR"))
	opts = append([]transfer.Option{transfer.WithClock(func() time.Time { return exportTime })}, opts...)
	return transfer.NewManager(s, repos, opts...), repos
}

func seed(t *testing.T, repos *repository.Set) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repos.Schedule.ReplaceSchedule(ctx, shift.DaySchedule{
		"2024-03-01": {"day"},
		"2024-03-02": {"night", "day"},
	}))
	require.NoError(t, repos.Schedule.ReplaceSpecialDates(ctx, shift.SpecialDates{"2024-03-02": true}))
	require.NoError(t, repos.Settings.WriteSettings(ctx, shift.Settings{
		HourlyRate:        25,
		Currency:          "EUR",
		ShiftCombinations: shift.DefaultShiftCombinations(),
		CustomShifts: []shift.CustomShift{
			{ID: "day", Name: "Day", Hours: 8, Enabled: true},
			{ID: "night", Name: "Night", Hours: 8, NormalHours: 6, OvertimeHours: 2, Enabled: true},
		},
	}))
	require.NoError(t, repos.Metadata.WriteTitle(ctx, "March"))
}

// failingSettingsStore refuses every write to the settings collection.
type failingSettingsStore struct {
	shift.Store
}

var errSettingsLocked = errors.New("settings locked")

func (f failingSettingsStore) RunTransaction(ctx context.Context, c shift.Collection, mode shift.TxMode, fn func(shift.Bucket) error) error {
	if c == shift.CollectionSettings {
		return errSettingsLocked
	}
	return f.Store.RunTransaction(ctx, c, mode, fn)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestExportAll_StampsVersionAndDate(t *testing.T) {
	m, repos := newManager(t, store.NewMemory())
	seed(t, repos)

	doc, err := m.ExportAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, transfer.FormatVersion, doc.Version)
	assert.Equal(t, "2024-03-15T09:30:00Z", doc.ExportDate)
	assert.Equal(t, []string{"night", "day"}, doc.Schedule["2024-03-02"])
	assert.Equal(t, shift.SpecialDates{"2024-03-02": true}, doc.SpecialDates)
	require.NotNil(t, doc.ScheduleTitle)
	assert.Equal(t, "March", *doc.ScheduleTitle)
}

func TestExportAll_NoTitleIsAbsent(t *testing.T) {
	// GIVEN: a store where no title was ever written
	// WHEN: its export is imported into another empty store
	// THEN: the document has no title and the target still has none
	ctx := context.Background()
	m, _ := newManager(t, store.NewMemory())

	doc, err := m.ExportAll(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc.ScheduleTitle)

	var buf bytes.Buffer
	require.NoError(t, transfer.Encode(&buf, doc))
	decoded, err := transfer.Decode(&buf)
	require.NoError(t, err)

	dst, dstRepos := newManager(t, store.NewMemory())
	report, err := dst.ImportAll(ctx, decoded)
	require.NoError(t, err)
	assert.Contains(t, report.Skipped, shift.CollectionMetadata)

	_, ok, err := dstRepos.Metadata.ReadTitle(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExportAll_EmptyStoreExportsDefaults(t *testing.T) {
	m, _ := newManager(t, store.NewMemory())

	doc, err := m.ExportAll(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, doc.Schedule)
	assert.Empty(t, doc.Schedule)
	assert.NotNil(t, doc.SpecialDates)

	var settings shift.Settings
	require.NoError(t, json.Unmarshal(doc.Settings, &settings))
	assert.Equal(t, "EUR", settings.Currency)
	assert.Equal(t, shift.DefaultShiftCombinations(), settings.ShiftCombinations)
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestExportImport_RoundTripThroughJSON(t *testing.T) {
	// GIVEN: a populated store
	// WHEN: its export is encoded, decoded and imported into an empty store
	// THEN: both stores read back the same state
	ctx := context.Background()
	src, srcRepos := newManager(t, store.NewMemory())
	seed(t, srcRepos)

	doc, err := src.ExportAll(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, transfer.Encode(&buf, doc))
	decoded, err := transfer.Decode(&buf)
	require.NoError(t, err)

	dst, dstRepos := newManager(t, store.NewMemory())
	report, err := dst.ImportAll(ctx, decoded)
	require.NoError(t, err)
	assert.Len(t, report.Applied, 4)
	assert.Empty(t, report.Failed)

	srcSchedule, _ := srcRepos.Schedule.ReadSchedule(ctx)
	dstSchedule, err := dstRepos.Schedule.ReadSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, srcSchedule, dstSchedule)

	srcSpecial, _ := srcRepos.Schedule.ReadSpecialDates(ctx)
	dstSpecial, err := dstRepos.Schedule.ReadSpecialDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, srcSpecial, dstSpecial)

	srcSettings, _ := srcRepos.Settings.ReadSettings(ctx)
	dstSettings, err := dstRepos.Settings.ReadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, srcSettings, dstSettings)

	title, _, err := dstRepos.Metadata.ReadTitle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "March", title)

	again, err := dst.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Schedule, again.Schedule)
	assert.JSONEq(t, string(doc.Settings), string(again.Settings))
}

func TestExportImport_EmptyApplicableDaysSurvive(t *testing.T) {
	ctx := context.Background()
	src, srcRepos := newManager(t, store.NewMemory())
	require.NoError(t, srcRepos.Settings.WriteSettings(ctx, shift.Settings{
		Currency: "EUR",
		CustomShifts: []shift.CustomShift{
			{ID: "never", Name: "Never", Hours: 8, Enabled: true, ApplicableDays: shift.ApplicableDays{}},
		},
	}))

	doc, err := src.ExportAll(ctx)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, transfer.Encode(&buf, doc))
	decoded, err := transfer.Decode(&buf)
	require.NoError(t, err)

	dst, dstRepos := newManager(t, store.NewMemory())
	_, err = dst.ImportAll(ctx, decoded)
	require.NoError(t, err)

	got, err := dstRepos.Settings.ReadSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.CustomShifts, 1)
	assert.NotNil(t, got.CustomShifts[0].ApplicableDays)
	assert.Empty(t, got.CustomShifts[0].ApplicableDays)
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImportAll_AbsentFieldsLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()
	m, repos := newManager(t, store.NewMemory())
	seed(t, repos)

	doc, err := transfer.Decode(strings.NewReader(`{"specialDates":{"2024-04-01":true},"version":"2.0"}`))
	require.NoError(t, err)

	report, err := m.ImportAll(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, []shift.Collection{shift.CollectionSpecialDates}, report.Applied)
	assert.Len(t, report.Skipped, 3)

	schedule, err := repos.Schedule.ReadSchedule(ctx)
	require.NoError(t, err)
	assert.Len(t, schedule, 2, "schedule not in document, must be kept")

	special, err := repos.Schedule.ReadSpecialDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, shift.SpecialDates{"2024-04-01": true}, special)
}

func TestImportAll_LegacySettingsAreMigrated(t *testing.T) {
	ctx := context.Background()
	m, repos := newManager(t, store.NewMemory())

	doc, err := transfer.Decode(strings.NewReader(`{
		"settings": {"hourlyRate": 12, "customShifts": [{"id": "day", "hours": 8}]},
		"version": "1.0"
	}`))
	require.NoError(t, err)

	_, err = m.ImportAll(ctx, doc)
	require.NoError(t, err)

	settings, err := repos.Settings.ReadSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "EUR", settings.Currency)
	assert.Equal(t, shift.SettingsSchemaVersion, settings.SchemaVersion)
	assert.True(t, settings.CustomShifts[0].Enabled)
	assert.NotEmpty(t, settings.ShiftCombinations)
}

func TestImportAll_FutureVersionIsAccepted(t *testing.T) {
	m, repos := newManager(t, store.NewMemory())

	doc := transfer.Document{Schedule: shift.DaySchedule{"2024-05-01": {"day"}}, Version: "9.1"}
	_, err := m.ImportAll(context.Background(), doc)
	require.NoError(t, err)

	schedule, err := repos.Schedule.ReadSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc.Schedule, schedule)
}

func TestImportAll_PartialFailureAggregatesErrors(t *testing.T) {
	// GIVEN: a store whose settings collection rejects writes
	// WHEN: importing a document with schedule, settings (valid) and title
	// THEN: schedule and title are applied, settings fail, and one
	//   CollectionError names the settings collection
	ctx := context.Background()
	rec := &importFailures{}
	m, repos := newManager(t, failingSettingsStore{Store: store.NewMemory()}, transfer.WithRecorder(rec))

	title := "April"
	doc := transfer.Document{
		Schedule:      shift.DaySchedule{"2024-04-01": {"day"}},
		Settings:      json.RawMessage(`{"currency":"EUR","customShifts":[]}`),
		ScheduleTitle: &title,
		Version:       transfer.FormatVersion,
	}

	report, err := m.ImportAll(ctx, doc)
	require.Error(t, err)

	var importErr *transfer.ImportError
	require.ErrorAs(t, err, &importErr)
	require.Len(t, importErr.Failures, 1)
	assert.Equal(t, shift.CollectionSettings, importErr.Failures[0].Collection)
	assert.ErrorIs(t, err, errSettingsLocked)

	assert.ElementsMatch(t, []shift.Collection{shift.CollectionSchedule, shift.CollectionMetadata}, report.Applied)
	assert.Equal(t, []shift.Collection{shift.CollectionSettings}, report.Failed)
	assert.Equal(t, []string{"settings"}, rec.collections)

	schedule, err := repos.Schedule.ReadSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Schedule, schedule)
}

func TestImportAll_InvalidPartsAllReported(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t, store.NewMemory())

	doc := transfer.Document{
		Schedule: shift.DaySchedule{"not-a-date": {"day"}},
		Settings: json.RawMessage(`{"currency":"EURO","customShifts":[]}`),
	}

	_, err := m.ImportAll(ctx, doc)
	var importErr *transfer.ImportError
	require.ErrorAs(t, err, &importErr)
	require.Len(t, importErr.Failures, 2)
	assert.ErrorIs(t, err, shift.ErrInvalidDateKey)
	assert.ErrorIs(t, err, shift.ErrInvalidSettings)
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	_, err := transfer.Decode(strings.NewReader(`{"schedule": [`))
	assert.Error(t, err)
}

// =============================================================================
// RESET
// =============================================================================

func TestReset_ClearsEveryCollection(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m, repos := newManager(t, s)
	seed(t, repos)

	require.NoError(t, m.Reset(ctx))

	for _, c := range shift.Collections {
		recs, err := s.GetAll(ctx, c)
		require.NoError(t, err)
		assert.Empty(t, recs, "collection %s", c)
	}
}
