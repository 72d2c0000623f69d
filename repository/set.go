package repository

import "github.com/warp/shiftbook/shift"

// Set bundles the repositories built on one store.
type Set struct {
	Schedule *ScheduleRepository
	Settings *SettingsRepository
	Metadata *MetadataRepository
}

// New builds every repository over store with the same options.
func New(store shift.Store, opts ...Option) *Set {
	return &Set{
		Schedule: NewScheduleRepository(store, opts...),
		Settings: NewSettingsRepository(store, opts...),
		Metadata: NewMetadataRepository(store, opts...),
	}
}
