package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"booklens/internal/config"
	"booklens/internal/httpx"
	"booklens/internal/testutil"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	hit string
}

func (rec *recorder) mark(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.hit = name + ":" + r.PathValue("id") + r.PathValue("kind")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (rec *recorder) List(w http.ResponseWriter, r *http.Request)     { rec.mark("list")(w, r) }
func (rec *recorder) Get(w http.ResponseWriter, r *http.Request)      { rec.mark("get")(w, r) }
func (rec *recorder) Content(w http.ResponseWriter, r *http.Request)  { rec.mark("content")(w, r) }
func (rec *recorder) Analysis(w http.ResponseWriter, r *http.Request) { rec.mark("analysis")(w, r) }
func (rec *recorder) Ingest(w http.ResponseWriter, r *http.Request)   { rec.mark("ingest")(w, r) }
func (rec *recorder) Runs(w http.ResponseWriter, r *http.Request)     { rec.mark("runs")(w, r) }

func newTestRouter(rec *recorder, readyErr error) http.Handler {
	return newRouter(routes{
		books:    rec,
		analysis: rec,
		ingest:   rec,
		metrics:  http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		ready:    func(context.Context) error { return readyErr },
	})
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/books", "list:"},
		{http.MethodGet, "/books/1342", "get:1342"},
		{http.MethodGet, "/books/1342/content?page=2", "content:1342"},
		{http.MethodGet, "/books/1342/analysis/characters", "analysis:1342characters"},
		{http.MethodPost, "/internal/ingest/84", "ingest:84"},
		{http.MethodGet, "/internal/ingest/runs", "runs:"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := &recorder{}
			w := httptest.NewRecorder()
			newTestRouter(rec, nil).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, tt.want, rec.hit)
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	rec := &recorder{}
	w := httptest.NewRecorder()
	newTestRouter(rec, nil).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/books/1342", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Empty(t, rec.hit)
}

func TestRouter_Probes(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(&recorder{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	newTestRouter(&recorder{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	newTestRouter(&recorder{}, errors.New("db down")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	newTestRouter(&recorder{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", w.Body.String())
}

func passThrough(next http.Handler) http.Handler { return next }

func TestWithMiddleware_RecoveryBeforeStream(t *testing.T) {
	h := withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), config.Config{MaxRequestBytes: 1 << 20}, passThrough)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books", nil))

	res := testutil.RecordHTTPResponse(w)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "INTERNAL_ERROR", res.ErrorCode())
	meta, _ := res.Body["meta"].(map[string]any)
	assert.Equal(t, w.Header().Get("X-Request-Id"), meta["request_id"])
	assert.NotEmpty(t, meta["request_id"])
}

func TestWithMiddleware_RecoveryAfterStreamStarted(t *testing.T) {
	h := withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ew := httpx.NewEventWriter(w, 0)
		_ = ew.Send([]byte(`{"content":"Hello"}`))
		panic("boom")
	}), config.Config{MaxRequestBytes: 1 << 20}, passThrough)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books/1342/analysis/summary", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data: {\"content\":\"Hello\"}\n\n", w.Body.String())
	assert.NotContains(t, w.Body.String(), "INTERNAL_ERROR")
}
