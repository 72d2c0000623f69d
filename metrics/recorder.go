// Package metrics provides observability hooks for store transactions,
// imports and backups.
//
// Components receive a Recorder through options and default to NoopRecorder,
// so no nil checks are needed at call sites. The binary swaps in
// PrometheusRecorder and serves it on /metrics.
package metrics

// Outcome labels a transaction result.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// Recorder defines the observability hooks. Implementations must be safe for
// concurrent use.
type Recorder interface {
	IncTransaction(collection, mode string, outcome Outcome)
	IncSettingsBackfill()
	IncImportFailure(collection string)
	IncBackup(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncTransaction(string, string, Outcome) {}
func (NoopRecorder) IncSettingsBackfill()                   {}
func (NoopRecorder) IncImportFailure(string)                {}
func (NoopRecorder) IncBackup(bool)                         {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
