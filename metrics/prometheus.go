package metrics

import (
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus counters.
type PrometheusRecorder struct {
	transactions     *prom.CounterVec
	settingsBackfill prom.Counter
	importFailures   *prom.CounterVec
	backups          *prom.CounterVec
}

// NewPrometheusRecorder constructs the counters and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		transactions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shiftbook",
			Name:      "store_transactions_total",
			Help:      "Store transactions by collection, mode and outcome",
		}, []string{"collection", "mode", "outcome"}),
		settingsBackfill: prom.NewCounter(prom.CounterOpts{
			Namespace: "shiftbook",
			Name:      "settings_backfills_total",
			Help:      "Settings records repaired on read",
		}),
		importFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shiftbook",
			Name:      "import_failures_total",
			Help:      "Per-collection import failures",
		}, []string{"collection"}),
		backups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shiftbook",
			Name:      "backups_total",
			Help:      "Automatic backup runs by result",
		}, []string{"success"}),
	}
	reg.MustRegister(pr.transactions, pr.settingsBackfill, pr.importFailures, pr.backups)
	return pr
}

func (p *PrometheusRecorder) IncTransaction(collection, mode string, outcome Outcome) {
	p.transactions.WithLabelValues(collection, mode, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncSettingsBackfill() { p.settingsBackfill.Inc() }

func (p *PrometheusRecorder) IncImportFailure(collection string) {
	p.importFailures.WithLabelValues(collection).Inc()
}

func (p *PrometheusRecorder) IncBackup(success bool) {
	p.backups.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// HTTPHandler returns an http.Handler that serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
