package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/warp/shiftbook/logfields"
	"github.com/warp/shiftbook/shift"
)

// ScheduleRepository reads and replaces the schedule and specialDates
// collections.
//
// Writes are full replaces: clear + reinsert inside one transaction. A
// failure midway leaves the previous contents in place.
type ScheduleRepository struct {
	store shift.Store
	opts  options
}

func NewScheduleRepository(store shift.Store, opts ...Option) *ScheduleRepository {
	return &ScheduleRepository{store: store, opts: buildOptions(opts)}
}

// =============================================================================
// SCHEDULE
// =============================================================================

// ReadSchedule loads the day schedule. An empty store yields an empty,
// non-nil mapping.
func (r *ScheduleRepository) ReadSchedule(ctx context.Context) (shift.DaySchedule, error) {
	records, err := r.store.GetAll(ctx, shift.CollectionSchedule)
	if err != nil {
		return nil, shift.NewPersistenceError("read", shift.CollectionSchedule, err)
	}

	schedule := make(shift.DaySchedule, len(records))
	for _, rec := range records {
		var ids []string
		if err := json.Unmarshal(rec.Value, &ids); err != nil {
			return nil, shift.NewPersistenceError("read", shift.CollectionSchedule,
				fmt.Errorf("decode %s: %w", rec.Key, err))
		}
		if len(ids) == 0 {
			continue
		}
		schedule[shift.DateKey(rec.Key)] = ids
	}
	return schedule, nil
}

// ReplaceSchedule overwrites the stored schedule. Entries with an empty id
// list are not stored.
func (r *ScheduleRepository) ReplaceSchedule(ctx context.Context, schedule shift.DaySchedule) error {
	keys := make([]string, 0, len(schedule))
	values := make(map[string][]byte, len(schedule))
	for k, ids := range schedule {
		if len(ids) == 0 {
			continue
		}
		if !k.Valid() {
			return shift.NewPersistenceError("replace", shift.CollectionSchedule,
				fmt.Errorf("%w: %q", shift.ErrInvalidDateKey, string(k)))
		}
		raw, err := json.Marshal(ids)
		if err != nil {
			return shift.NewPersistenceError("replace", shift.CollectionSchedule, err)
		}
		keys = append(keys, string(k))
		values[string(k)] = raw
	}
	sort.Strings(keys)

	err := r.replaceAll(ctx, shift.CollectionSchedule, keys, values)
	if err != nil {
		return err
	}
	r.opts.logger.Debug("Schedule replaced",
		logfields.Collection(string(shift.CollectionSchedule)),
		logfields.Count(len(keys)))
	return nil
}

// =============================================================================
// SPECIAL DATES
// =============================================================================

// ReadSpecialDates loads the special-date flags. The result only ever holds
// true values.
func (r *ScheduleRepository) ReadSpecialDates(ctx context.Context) (shift.SpecialDates, error) {
	records, err := r.store.GetAll(ctx, shift.CollectionSpecialDates)
	if err != nil {
		return nil, shift.NewPersistenceError("read", shift.CollectionSpecialDates, err)
	}

	dates := make(shift.SpecialDates, len(records))
	for _, rec := range records {
		var flag bool
		if err := json.Unmarshal(rec.Value, &flag); err != nil {
			return nil, shift.NewPersistenceError("read", shift.CollectionSpecialDates,
				fmt.Errorf("decode %s: %w", rec.Key, err))
		}
		if flag {
			dates[shift.DateKey(rec.Key)] = true
		}
	}
	return dates, nil
}

// ReplaceSpecialDates overwrites the stored flags. Only true entries are
// stored.
func (r *ScheduleRepository) ReplaceSpecialDates(ctx context.Context, dates shift.SpecialDates) error {
	keys := make([]string, 0, len(dates))
	values := make(map[string][]byte, len(dates))
	for k, v := range dates {
		if !v {
			continue
		}
		if !k.Valid() {
			return shift.NewPersistenceError("replace", shift.CollectionSpecialDates,
				fmt.Errorf("%w: %q", shift.ErrInvalidDateKey, string(k)))
		}
		keys = append(keys, string(k))
		values[string(k)] = []byte("true")
	}
	sort.Strings(keys)

	return r.replaceAll(ctx, shift.CollectionSpecialDates, keys, values)
}

// ToggleSpecialDate flips the special flag of key and applies the legacy
// removal rule to that day's assignments. It returns the new flag.
//
// The schedule is written before the flags, each in its own transaction.
// When the flag write fails the previous schedule is written back.
func (r *ScheduleRepository) ToggleSpecialDate(ctx context.Context, key shift.DateKey) (bool, error) {
	if !key.Valid() {
		return false, shift.NewPersistenceError("toggle", shift.CollectionSpecialDates,
			fmt.Errorf("%w: %q", shift.ErrInvalidDateKey, string(key)))
	}

	dates, err := r.ReadSpecialDates(ctx)
	if err != nil {
		return false, err
	}
	schedule, err := r.ReadSchedule(ctx)
	if err != nil {
		return false, err
	}

	prev := schedule.Clone()
	scheduleChanged := false

	special := !dates[key]
	evict := r.opts.toggle.OnDisableRemove
	if special {
		evict = r.opts.toggle.OnEnableRemove
	}

	if ids, ok := schedule[key]; ok && evict != "" {
		kept := removeID(ids, evict)
		if len(kept) != len(ids) {
			schedule[key] = kept
			if err := r.ReplaceSchedule(ctx, schedule); err != nil {
				return !special, err
			}
			scheduleChanged = true
			r.opts.logger.Info("Removed shift on special toggle",
				logfields.Date(string(key)),
				slog.String("shift_id", evict),
				slog.Bool("special", special))
		}
	}

	if special {
		dates[key] = true
	} else {
		delete(dates, key)
	}
	if err := r.ReplaceSpecialDates(ctx, dates); err != nil {
		if scheduleChanged {
			if rerr := r.ReplaceSchedule(ctx, prev); rerr != nil {
				r.opts.logger.Error("Failed to restore schedule after toggle",
					logfields.Date(string(key)),
					logfields.Error(rerr))
			}
		}
		return !special, err
	}
	return special, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// replaceAll clears c and inserts keys in order, all in one transaction.
func (r *ScheduleRepository) replaceAll(ctx context.Context, c shift.Collection, keys []string, values map[string][]byte) error {
	err := r.store.RunTransaction(ctx, c, shift.ReadWrite, func(b shift.Bucket) error {
		if err := b.Clear(ctx); err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Put(ctx, k, values[k]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.opts.logger.Warn("Replace aborted, previous contents kept",
			logfields.Collection(string(c)),
			logfields.Error(err))
		return shift.NewPersistenceError("replace", c, err)
	}
	return nil
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
