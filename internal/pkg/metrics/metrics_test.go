package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRecords(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(WithRegistry(registry), WithNamespace("test"))

	m.RowValidated("employee", "valid")
	m.RowValidated("employee", "valid")
	m.RowValidated("employee", "invalid")
	m.Batch("benchmark", true)
	m.Batch("benchmark", false)
	m.RecordsCommitted("benchmark", 70)
	m.RecordsCommitted("benchmark", 0)
	m.RecordsDropped("benchmark", 2)
	m.UploadDuration("benchmark", 1500*time.Millisecond)
	m.MappingConfidence("employee", 0.6)
	m.SessionEvent("employee", "opened")
	m.InboxObject("processed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rowsValidated.WithLabelValues("employee", "valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowsValidated.WithLabelValues("employee", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("benchmark", "error")))
	assert.Equal(t, 70.0, testutil.ToFloat64(m.recordsCommitted.WithLabelValues("benchmark")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.recordsDropped.WithLabelValues("benchmark")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inboxObjects.WithLabelValues("processed")))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_ingest_rows_validated_total")
	assert.Contains(t, names, "test_ingest_upload_duration_seconds")
}

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.RowValidated("employee", "valid")
		m.Batch("employee", false)
		m.RecordsCommitted("employee", 5)
		m.UploadDuration("employee", time.Second)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewManager()
	m.SessionEvent("employee", "committed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paybench_ingest_sessions_total")
}
