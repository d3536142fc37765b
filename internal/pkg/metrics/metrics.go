// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every pipeline metric. A nil *Manager is valid and records
// nothing, so libraries and tests can skip wiring it.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	sessions          *prometheus.CounterVec
	rowsValidated     *prometheus.CounterVec
	mappingConfidence *prometheus.HistogramVec
	batches           *prometheus.CounterVec
	recordsCommitted  *prometheus.CounterVec
	recordsDropped    *prometheus.CounterVec
	uploadDuration    *prometheus.HistogramVec
	inboxObjects      *prometheus.CounterVec
}

// NewManager creates a manager registered on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "paybench",
		subsystem:        "ingest",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.sessions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_total",
		Help:      "Import session lifecycle events",
	}, []string{"data_type", "event"})

	m.rowsValidated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_validated_total",
		Help:      "Rows validated, by resulting classification",
	}, []string{"data_type", "status"})

	m.mappingConfidence = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mapping_confidence",
		Help:      "Confidence of inferred column mappings",
		Buckets:   []float64{0, 0.3, 0.6, 1},
	}, []string{"data_type"})

	m.batches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upload_batches_total",
		Help:      "Storage batches issued, by outcome",
	}, []string{"data_type", "outcome"})

	m.recordsCommitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_committed_total",
		Help:      "Records accepted by storage",
	}, []string{"data_type"})

	m.recordsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_dropped_total",
		Help:      "Valid rows dropped because they could not be transformed",
	}, []string{"data_type"})

	m.uploadDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upload_duration_seconds",
		Help:      "Wall time of a full batched upload",
		Buckets:   m.histogramBuckets,
	}, []string{"data_type"})

	m.inboxObjects = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inbox_objects_total",
		Help:      "Object storage files picked up by the inbox poller, by outcome",
	}, []string{"outcome"})
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) SessionEvent(dataType, event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(dataType, event).Inc()
}

func (m *Manager) RowValidated(dataType, status string) {
	if m == nil {
		return
	}
	m.rowsValidated.WithLabelValues(dataType, status).Inc()
}

func (m *Manager) MappingConfidence(dataType string, confidence float64) {
	if m == nil {
		return
	}
	m.mappingConfidence.WithLabelValues(dataType).Observe(confidence)
}

func (m *Manager) Batch(dataType string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.batches.WithLabelValues(dataType, outcome).Inc()
}

func (m *Manager) RecordsCommitted(dataType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsCommitted.WithLabelValues(dataType).Add(float64(n))
}

func (m *Manager) RecordsDropped(dataType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsDropped.WithLabelValues(dataType).Add(float64(n))
}

func (m *Manager) UploadDuration(dataType string, d time.Duration) {
	if m == nil {
		return
	}
	m.uploadDuration.WithLabelValues(dataType).Observe(d.Seconds())
}

func (m *Manager) InboxObject(outcome string) {
	if m == nil {
		return
	}
	m.inboxObjects.WithLabelValues(outcome).Inc()
}
