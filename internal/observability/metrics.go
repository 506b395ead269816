package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestMetrics captures ingestion and polling health signals.
type IngestMetrics struct {
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	rowsWritten    *prometheus.CounterVec
	pollTicks      *prometheus.CounterVec
	objectsSkipped *prometheus.CounterVec
}

var (
	ingestMetricsOnce sync.Once
	ingestMetrics     *IngestMetrics
)

// Ingest returns the singleton ingestion metrics registry.
func Ingest() *IngestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetrics = newIngestMetrics(prometheus.DefaultRegisterer)
	})
	return ingestMetrics
}

// ResetIngestMetricsForTest points the singleton at a fresh private registry
// so tests can assert counter values without colliding with the default
// registry.
func ResetIngestMetricsForTest() *IngestMetrics {
	ingestMetricsOnce.Do(func() {})
	ingestMetrics = newIngestMetrics(prometheus.NewRegistry())
	return ingestMetrics
}

func newIngestMetrics(registerer prometheus.Registerer) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &IngestMetrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "costwise_ingest_runs_total",
			Help: "Ingestion runs by terminal status.",
		}, []string{"provider", "status"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "costwise_ingest_run_duration_seconds",
			Help:    "Wall time of a single file ingestion run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"provider"}),
		rowsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "costwise_ingest_rows_total",
			Help: "Billing fact rows written.",
		}, []string{"provider"}),
		pollTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "costwise_poll_ticks_total",
			Help: "Poll ticks by tenant integration.",
		}, []string{"tenant"}),
		objectsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "costwise_poll_objects_skipped_total",
			Help: "Objects skipped during polling.",
		}, []string{"reason"}),
	}
}

func (m *IngestMetrics) ObserveRun(provider, status string, d time.Duration) {
	if m == nil {
		return
	}
	provider = normalizeLabel(provider)
	m.runs.WithLabelValues(provider, normalizeLabel(status)).Inc()
	m.runDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *IngestMetrics) AddRows(provider string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsWritten.WithLabelValues(normalizeLabel(provider)).Add(float64(n))
}

func (m *IngestMetrics) IncPollTick(tenantID string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(normalizeLabel(tenantID)).Inc()
}

func (m *IngestMetrics) IncObjectSkipped(reason string) {
	if m == nil {
		return
	}
	m.objectsSkipped.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
