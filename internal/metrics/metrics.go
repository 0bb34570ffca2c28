package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the service.
type Metrics struct {
	Registry             *prometheus.Registry
	CatalogRequestsTotal *prometheus.CounterVec
	CatalogDuration      prometheus.Histogram
	CatalogRetriesTotal  prometheus.Counter
	IngestionsTotal      *prometheus.CounterVec
	ChunksStoredTotal    prometheus.Counter
	ProviderCallsTotal   *prometheus.CounterVec
	SummaryCacheTotal    *prometheus.CounterVec
	RelaySegmentsTotal   prometheus.Counter
	MalformedFramesTotal prometheus.Counter
	BackgroundErrorTotal prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	catalogRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklens_catalog_requests_total",
			Help: "Catalog HTTP requests by resource and status code.",
		},
		[]string{"resource", "status"},
	)
	catalogDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booklens_catalog_request_duration_seconds",
			Help:    "Catalog HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	catalogRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booklens_catalog_retries_total",
			Help: "Catalog request retries after transport errors.",
		},
	)
	ingestions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklens_ingestions_total",
			Help: "Book resolutions by outcome.",
		},
		[]string{"outcome"},
	)
	chunksStored := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booklens_chunks_stored_total",
			Help: "Text chunks persisted by ingestion.",
		},
	)
	providerCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklens_provider_calls_total",
			Help: "Analysis provider calls by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	summaryCache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklens_summary_lookups_total",
			Help: "Summary lookups by source.",
		},
		[]string{"source"},
	)
	relaySegments := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booklens_relay_segments_total",
			Help: "Segments forwarded to live analysis streams.",
		},
	)
	malformedFrames := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booklens_relay_malformed_frames_total",
			Help: "Provider stream frames skipped because they could not be parsed.",
		},
	)
	backgroundErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booklens_background_task_errors_total",
			Help: "Detached background tasks that failed.",
		},
	)

	registry.MustRegister(
		catalogRequests, catalogDuration, catalogRetries,
		ingestions, chunksStored,
		providerCalls, summaryCache, relaySegments, malformedFrames, backgroundErrors,
	)

	return &Metrics{
		Registry:             registry,
		CatalogRequestsTotal: catalogRequests,
		CatalogDuration:      catalogDuration,
		CatalogRetriesTotal:  catalogRetries,
		IngestionsTotal:      ingestions,
		ChunksStoredTotal:    chunksStored,
		ProviderCallsTotal:   providerCalls,
		SummaryCacheTotal:    summaryCache,
		RelaySegmentsTotal:   relaySegments,
		MalformedFramesTotal: malformedFrames,
		BackgroundErrorTotal: backgroundErrors,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveCatalogRequest records one catalog round trip.
func (m *Metrics) ObserveCatalogRequest(resource, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CatalogRequestsTotal.WithLabelValues(resource, status).Inc()
	m.CatalogDuration.Observe(d.Seconds())
}

// IncCatalogRetry increments the catalog retry counter.
func (m *Metrics) IncCatalogRetry() {
	if m == nil {
		return
	}
	m.CatalogRetriesTotal.Inc()
}

// IncIngestion increments the resolution counter for an outcome label.
func (m *Metrics) IncIngestion(outcome string) {
	if m == nil {
		return
	}
	m.IngestionsTotal.WithLabelValues(outcome).Inc()
}

// AddChunks adds n to the stored chunk counter.
func (m *Metrics) AddChunks(n int) {
	if m == nil {
		return
	}
	m.ChunksStoredTotal.Add(float64(n))
}

// IncProviderCall increments the provider call counter.
func (m *Metrics) IncProviderCall(mode, outcome string) {
	if m == nil {
		return
	}
	m.ProviderCallsTotal.WithLabelValues(mode, outcome).Inc()
}

// IncSummaryLookup increments the summary lookup counter for a source
// label (cache, store or computed).
func (m *Metrics) IncSummaryLookup(source string) {
	if m == nil {
		return
	}
	m.SummaryCacheTotal.WithLabelValues(source).Inc()
}

// IncRelaySegment increments the forwarded segment counter.
func (m *Metrics) IncRelaySegment() {
	if m == nil {
		return
	}
	m.RelaySegmentsTotal.Inc()
}

// AddMalformedFrames adds n to the skipped frame counter.
func (m *Metrics) AddMalformedFrames(n int) {
	if m == nil || n == 0 {
		return
	}
	m.MalformedFramesTotal.Add(float64(n))
}

// IncBackgroundError increments the failed background task counter.
func (m *Metrics) IncBackgroundError() {
	if m == nil {
		return
	}
	m.BackgroundErrorTotal.Inc()
}
