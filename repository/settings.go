package repository

import (
	"context"
	"encoding/json"

	"github.com/warp/shiftbook/logfields"
	"github.com/warp/shiftbook/shift"
)

// SettingsRepository reads and writes the single settings record.
type SettingsRepository struct {
	store shift.Store
	opts  options
}

func NewSettingsRepository(store shift.Store, opts ...Option) *SettingsRepository {
	return &SettingsRepository{store: store, opts: buildOptions(opts)}
}

// DefaultCurrency is the currency backfilled into records without one.
func (r *SettingsRepository) DefaultCurrency() string {
	return r.opts.defaultCurrency
}

// ReadSettings loads the settings record, or nil when none was ever written.
//
// Older records are migrated on load. When migration changed anything the
// result is written back right away so the next read skips it; a failed
// write-back is logged and the migrated record is still returned.
func (r *SettingsRepository) ReadSettings(ctx context.Context) (*shift.Settings, error) {
	raw, ok, err := r.store.Get(ctx, shift.CollectionSettings, shift.SettingsKey)
	if err != nil {
		return nil, shift.NewPersistenceError("read", shift.CollectionSettings, err)
	}
	if !ok {
		return nil, nil
	}

	settings, changed, err := MigrateSettings(raw, r.opts.defaultCurrency)
	if err != nil {
		return nil, shift.NewPersistenceError("read", shift.CollectionSettings, err)
	}

	if changed {
		r.opts.recorder.IncSettingsBackfill()
		if err := r.put(ctx, settings); err != nil {
			r.opts.logger.Warn("Failed to persist backfilled settings",
				logfields.Collection(string(shift.CollectionSettings)),
				logfields.Error(err))
		} else {
			r.opts.logger.Info("Settings backfilled",
				logfields.Collection(string(shift.CollectionSettings)),
				logfields.Count(len(settings.CustomShifts)))
		}
	}
	return &settings, nil
}

// WriteSettings validates and upserts the complete record. Nothing is merged
// with the stored record.
func (r *SettingsRepository) WriteSettings(ctx context.Context, settings shift.Settings) error {
	if err := ValidateSettings(settings); err != nil {
		return shift.NewPersistenceError("write", shift.CollectionSettings, err)
	}
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = shift.SettingsSchemaVersion
	}
	return r.put(ctx, settings)
}

func (r *SettingsRepository) put(ctx context.Context, settings shift.Settings) error {
	if settings.CustomShifts == nil {
		settings.CustomShifts = []shift.CustomShift{}
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return shift.NewPersistenceError("write", shift.CollectionSettings, err)
	}

	err = r.store.RunTransaction(ctx, shift.CollectionSettings, shift.ReadWrite, func(b shift.Bucket) error {
		return b.Put(ctx, shift.SettingsKey, raw)
	})
	return shift.NewPersistenceError("write", shift.CollectionSettings, err)
}
