package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shiftbook/metrics"
)

func scrape(t *testing.T, reg *prom.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheusRecorder_ExposesCounters(t *testing.T) {
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	rec.IncTransaction("schedule", "read_write", metrics.OutcomeCommitted)
	rec.IncTransaction("schedule", "read_write", metrics.OutcomeCommitted)
	rec.IncSettingsBackfill()
	rec.IncImportFailure("settings")
	rec.IncBackup(false)

	out := scrape(t, reg)
	assert.Contains(t, out, `shiftbook_store_transactions_total{collection="schedule",mode="read_write",outcome="committed"} 2`)
	assert.Contains(t, out, `shiftbook_settings_backfills_total 1`)
	assert.Contains(t, out, `shiftbook_import_failures_total{collection="settings"} 1`)
	assert.Contains(t, out, `shiftbook_backups_total{success="false"} 1`)
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, metrics.NoopRecorder{}, metrics.OrNoop(nil))

	rec := metrics.NewPrometheusRecorder(nil)
	assert.Same(t, rec, metrics.OrNoop(rec))
}
