package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shiftbook/shift"
	"github.com/warp/shiftbook/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// SCHEMA
// =============================================================================

func TestNew_AppliesCurrentSchemaVersion(t *testing.T) {
	store := newTestStore(t)

	v, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sqlite.SchemaVersion, v)
	assert.Equal(t, 2, v)
}

func TestNew_ReopenPreservesData(t *testing.T) {
	// GIVEN: a database file with a schedule entry
	// WHEN: the store is closed and opened again
	// THEN: the entry is still there and the schema version is unchanged
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shiftbook.db")

	first, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, shift.CollectionSchedule, "2024-03-01", []byte(`["day"]`)))
	require.NoError(t, first.Close())

	second, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	v, ok, err := second.Get(ctx, shift.CollectionSchedule, "2024-03-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `["day"]`, string(v))

	version, err := second.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlite.SchemaVersion, version)
}

func TestNew_UnopenablePathIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "nested", "shiftbook.db")

	_, err := sqlite.New(path)
	require.Error(t, err)
	assert.True(t, shift.IsUnavailable(err))
}

// =============================================================================
// KEY/VALUE
// =============================================================================

func TestStore_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, shift.CollectionSettings, shift.SettingsKey, []byte(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, shift.CollectionSettings, shift.SettingsKey, []byte(`{"a":2}`)))

	recs, err := store.GetAll(ctx, shift.CollectionSettings)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, `{"a":2}`, string(recs[0].Value))
}

func TestStore_GetAbsent(t *testing.T) {
	store := newTestStore(t)

	v, ok, err := store.Get(context.Background(), shift.CollectionMetadata, shift.TitleKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestStore_GetAllOrderedAndClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, k := range []string{"2024-03-03", "2024-03-01", "2024-03-02"} {
		require.NoError(t, store.Put(ctx, shift.CollectionSpecialDates, k, []byte("true")))
	}

	recs, err := store.GetAll(ctx, shift.CollectionSpecialDates)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"},
		[]string{recs[0].Key, recs[1].Key, recs[2].Key})

	require.NoError(t, store.Clear(ctx, shift.CollectionSpecialDates))
	recs, err = store.GetAll(ctx, shift.CollectionSpecialDates)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_UnknownCollection(t *testing.T) {
	store := newTestStore(t)

	err := store.Put(context.Background(), shift.Collection("payslips"), "k", []byte("{}"))
	assert.ErrorIs(t, err, shift.ErrUnknownCollection)
}

func TestStore_WithClockStampsUpdates(t *testing.T) {
	// updated_at is not part of the contract; the write must still succeed
	// with an injected clock.
	fixed := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	store, err := sqlite.New(":memory:", sqlite.WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Put(context.Background(), shift.CollectionMetadata, shift.TitleKey, []byte(`"t"`)))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestRunTransaction_RollbackOnError(t *testing.T) {
	// GIVEN: two schedule entries
	// WHEN: a replace clears the table, inserts one row and then fails
	// THEN: the table holds exactly the two original entries
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Put(ctx, shift.CollectionSchedule, "2024-03-01", []byte(`["day"]`)))
	require.NoError(t, store.Put(ctx, shift.CollectionSchedule, "2024-03-02", []byte(`["night"]`)))

	boom := errors.New("write failed")
	err := store.RunTransaction(ctx, shift.CollectionSchedule, shift.ReadWrite, func(b shift.Bucket) error {
		if err := b.Clear(ctx); err != nil {
			return err
		}
		if err := b.Put(ctx, "2024-04-01", []byte(`["day"]`)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	recs, err := store.GetAll(ctx, shift.CollectionSchedule)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2024-03-01", recs[0].Key)
	assert.Equal(t, "2024-03-02", recs[1].Key)
}

func TestRunTransaction_CommitAndReadInside(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.RunTransaction(ctx, shift.CollectionSchedule, shift.ReadWrite, func(b shift.Bucket) error {
		if err := b.Put(ctx, "2024-03-01", []byte(`["day"]`)); err != nil {
			return err
		}
		recs, err := b.GetAll(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, recs, 1)
		return nil
	})
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, shift.CollectionSchedule, "2024-03-01")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunTransaction_ReadOnlyRejectsWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.RunTransaction(ctx, shift.CollectionSchedule, shift.ReadOnly, func(b shift.Bucket) error {
		return b.Clear(ctx)
	})
	assert.ErrorIs(t, err, shift.ErrReadOnlyTx)
}
