// Package store provides the in-memory shift.Store implementation.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/warp/shiftbook/metrics"
	"github.com/warp/shiftbook/shift"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (tests, non-persisted sessions)
// =============================================================================

// Compile-time check that Memory implements shift.Store.
var _ shift.Store = (*Memory)(nil)

var errClosed = errors.New("store closed")

type Memory struct {
	mu          sync.RWMutex
	collections map[shift.Collection]map[string][]byte
	recorder    metrics.Recorder
	closed      bool
}

// Option configures a Memory store.
type Option func(*Memory)

// WithRecorder reports transaction outcomes to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Memory) { m.recorder = metrics.OrNoop(r) }
}

// NewMemory returns an empty store holding all four collections.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		collections: make(map[shift.Collection]map[string][]byte, len(shift.Collections)),
		recorder:    metrics.NoopRecorder{},
	}
	for _, c := range shift.Collections {
		m.collections[c] = make(map[string][]byte)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, c shift.Collection, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, err := m.collectionLocked(c)
	if err != nil {
		return nil, false, err
	}
	return getLocked(coll, key)
}

func (m *Memory) Put(_ context.Context, c shift.Collection, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, err := m.collectionLocked(c)
	if err != nil {
		return err
	}
	coll[key] = clone(value)
	return nil
}

func (m *Memory) GetAll(_ context.Context, c shift.Collection) ([]shift.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, err := m.collectionLocked(c)
	if err != nil {
		return nil, err
	}
	return recordsLocked(coll), nil
}

func (m *Memory) Clear(_ context.Context, c shift.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.collectionLocked(c); err != nil {
		return err
	}
	m.collections[c] = make(map[string][]byte)
	return nil
}

// SchemaVersion is constant: the memory store is always created current.
func (m *Memory) SchemaVersion(context.Context) (int, error) {
	return SchemaVersion, nil
}

// SchemaVersion reported by the memory store. Kept equal to the SQLite schema.
const SchemaVersion = 2

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) collectionLocked(c shift.Collection) (map[string][]byte, error) {
	if m.closed {
		return nil, errClosed
	}
	coll, ok := m.collections[c]
	if !ok {
		return nil, shift.ErrUnknownCollection
	}
	return coll, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// RunTransaction executes fn against one collection.
// Simulated with a snapshot + restore on error or cancellation.
func (m *Memory) RunTransaction(ctx context.Context, c shift.Collection, mode shift.TxMode, fn func(shift.Bucket) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.collectionLocked(c); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := cloneCollection(m.collections[c])
	view := &txView{parent: m, collection: c, mode: mode}

	err := fn(view)
	if err == nil {
		// Abandoned before commit: same as a failed body.
		err = ctx.Err()
	}
	if err != nil {
		m.collections[c] = snapshot
		m.recorder.IncTransaction(string(c), mode.String(), metrics.OutcomeRolledBack)
		return err
	}

	// Commit (already done via direct writes)
	m.recorder.IncTransaction(string(c), mode.String(), metrics.OutcomeCommitted)
	return nil
}

type txView struct {
	parent     *Memory
	collection shift.Collection
	mode       shift.TxMode
}

func (tv *txView) Get(_ context.Context, key string) ([]byte, bool, error) {
	return getLocked(tv.parent.collections[tv.collection], key)
}

func (tv *txView) Put(_ context.Context, key string, value []byte) error {
	if tv.mode != shift.ReadWrite {
		return shift.ErrReadOnlyTx
	}
	tv.parent.collections[tv.collection][key] = clone(value)
	return nil
}

func (tv *txView) GetAll(_ context.Context) ([]shift.Record, error) {
	return recordsLocked(tv.parent.collections[tv.collection]), nil
}

func (tv *txView) Clear(_ context.Context) error {
	if tv.mode != shift.ReadWrite {
		return shift.ErrReadOnlyTx
	}
	tv.parent.collections[tv.collection] = make(map[string][]byte)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func getLocked(coll map[string][]byte, key string) ([]byte, bool, error) {
	v, ok := coll[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func recordsLocked(coll map[string][]byte) []shift.Record {
	records := make([]shift.Record, 0, len(coll))
	for k, v := range coll {
		records = append(records, shift.Record{Key: k, Value: clone(v)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records
}

func cloneCollection(coll map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(coll))
	for k, v := range coll {
		out[k] = v
	}
	return out
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
