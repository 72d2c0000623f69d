package repository

import (
	"context"
	"encoding/json"

	"github.com/warp/shiftbook/shift"
)

// MetadataRepository holds single-value records such as the schedule title.
type MetadataRepository struct {
	store shift.Store
	opts  options
}

func NewMetadataRepository(store shift.Store, opts ...Option) *MetadataRepository {
	return &MetadataRepository{store: store, opts: buildOptions(opts)}
}

// ReadTitle returns the schedule title. The bool is false when none was set.
func (r *MetadataRepository) ReadTitle(ctx context.Context) (string, bool, error) {
	raw, ok, err := r.store.Get(ctx, shift.CollectionMetadata, shift.TitleKey)
	if err != nil {
		return "", false, shift.NewPersistenceError("read", shift.CollectionMetadata, err)
	}
	if !ok {
		return "", false, nil
	}
	var title string
	if err := json.Unmarshal(raw, &title); err != nil {
		return "", false, shift.NewPersistenceError("read", shift.CollectionMetadata, err)
	}
	return title, true, nil
}

func (r *MetadataRepository) WriteTitle(ctx context.Context, title string) error {
	raw, err := json.Marshal(title)
	if err != nil {
		return shift.NewPersistenceError("write", shift.CollectionMetadata, err)
	}
	err = r.store.RunTransaction(ctx, shift.CollectionMetadata, shift.ReadWrite, func(b shift.Bucket) error {
		return b.Put(ctx, shift.TitleKey, raw)
	})
	return shift.NewPersistenceError("write", shift.CollectionMetadata, err)
}
