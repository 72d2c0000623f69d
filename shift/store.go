/*
store.go - Persistence contract for the local key-value store

PURPOSE:
  Defines the interface between repositories and the storage engine. The
  store is a versioned, transactional key-value store partitioned into four
  named collections. Values are opaque bytes; repositories own encoding.

KEY INTERFACES:
  Store:  Single-operation access (Get, Put, GetAll, Clear) + transactions
  Bucket: Collection-scoped handle passed to RunTransaction bodies

TRANSACTIONS:
  RunTransaction(ctx, collection, mode, fn) applies everything fn wrote, or
  nothing. fn returning an error, a failed write, or ctx being canceled
  before commit all leave the collection in its prior state. Every bulk
  replace in the repository layer goes through RunTransaction.

INITIALIZATION:
  Constructors create missing collections and bring the schema up to the
  current version. Re-running them against an existing store never drops
  data. A constructor that cannot open the engine returns an error wrapping
  ErrStoreUnavailable.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite store
  - shift/store/memory.go: In-memory store (tests, fallback session)
*/
package shift

import "context"

// =============================================================================
// COLLECTIONS
// =============================================================================

// Collection names one of the store's partitions.
type Collection string

const (
	CollectionSchedule     Collection = "schedule"
	CollectionSpecialDates Collection = "specialDates"
	CollectionSettings     Collection = "settings"
	CollectionMetadata     Collection = "metadata"
)

// Collections lists every collection the store owns.
var Collections = []Collection{
	CollectionSchedule,
	CollectionSpecialDates,
	CollectionSettings,
	CollectionMetadata,
}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// Well-known record keys.
const (
	SettingsKey = "userSettings"
	TitleKey    = "scheduleTitle"
)

// Record is one key/value pair of a collection.
type Record struct {
	Key   string
	Value []byte
}

// TxMode selects read-only or read-write transactions.
type TxMode int

const (
	ReadOnly TxMode = iota
	ReadWrite
)

func (m TxMode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// =============================================================================
// STORE
// =============================================================================

// Bucket is a collection-scoped view valid only inside a transaction body.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	GetAll(ctx context.Context) ([]Record, error)
	Clear(ctx context.Context) error
}

// Store is the persistent key-value store.
type Store interface {
	// Get returns the value for key. The bool is false when the key is absent.
	Get(ctx context.Context, c Collection, key string) ([]byte, bool, error)

	// Put upserts a value.
	Put(ctx context.Context, c Collection, key string, value []byte) error

	// GetAll returns every record of the collection ordered by key.
	GetAll(ctx context.Context, c Collection) ([]Record, error)

	// Clear empties the collection.
	Clear(ctx context.Context, c Collection) error

	// RunTransaction executes fn atomically against one collection.
	// If fn returns error, nothing fn wrote is kept.
	RunTransaction(ctx context.Context, c Collection, mode TxMode, fn func(Bucket) error) error

	// SchemaVersion returns the store's schema version.
	SchemaVersion(ctx context.Context) (int, error)

	Close() error
}
