package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCatalogRequest("metadata", "200", time.Second)
		m.IncCatalogRetry()
		m.IncIngestion("created")
		m.AddChunks(3)
		m.IncProviderCall("stream", "ok")
		m.IncSummaryLookup("cache")
		m.IncRelaySegment()
		m.AddMalformedFrames(1)
		m.IncBackgroundError()
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncIngestion("created")
	m.IncIngestion("created")
	m.IncIngestion("found")
	m.AddChunks(3)
	m.AddMalformedFrames(0)
	m.AddMalformedFrames(2)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `booklens_ingestions_total{outcome="created"} 2`)
	assert.Contains(t, body, `booklens_ingestions_total{outcome="found"} 1`)
	assert.Contains(t, body, "booklens_chunks_stored_total 3")
	assert.Contains(t, body, "booklens_relay_malformed_frames_total 2")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncRelaySegment()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "booklens_relay_segments_total 1")
}
