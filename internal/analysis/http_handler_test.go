package analysis

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"booklens/internal/platform/groq"
	"booklens/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAnalysis(t *testing.T, h *HTTPHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /books/{id}/analysis/{kind}", h.Analysis)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Buffered ")
	require.NoError(t, err)
	assert.Equal(t, ModeBuffered, m)

	_, err = ParseMode("websocket")
	assert.Error(t, err)
}

func TestHTTPHandler_Analysis_Buffered(t *testing.T) {
	store := testutil.NewMemoryRepo()
	seedBook(t, store, "1342", "It is a truth universally acknowledged.")
	svc := newTestService(t, store, &fakeLLM{}, Config{})
	h := NewHTTPHandler(svc, ModeBuffered, 0)

	w := serveAnalysis(t, h, "/books/1342/analysis/language")

	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.RecordHTTPResponse(w)
	data, ok := resp.Body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "language", data["kind"])
	assert.Equal(t, "language analysis", data["content"])
}

func TestHTTPHandler_Analysis_Stream(t *testing.T) {
	store := testutil.NewMemoryRepo()
	seedBook(t, store, "1342", "one")
	llm := &fakeLLM{stream: testutil.StreamBody("Hello")}
	svc := newTestService(t, store, llm, Config{})
	h := NewHTTPHandler(svc, ModeStream, 0)

	w := serveAnalysis(t, h, "/books/1342/analysis/characters")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "data: {\"content\":\"Hello\"}\n\n", w.Body.String())
}

func TestHTTPHandler_Analysis_StreamWithoutOutputStillOpens(t *testing.T) {
	store := testutil.NewMemoryRepo()
	seedBook(t, store, "1342", "one")
	llm := &fakeLLM{stream: testutil.DoneFrame}
	svc := newTestService(t, store, llm, Config{})
	h := NewHTTPHandler(svc, ModeStream, 0)

	w := serveAnalysis(t, h, "/books/1342/analysis/summary")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}

func TestHTTPHandler_Analysis_ModeOverride(t *testing.T) {
	store := testutil.NewMemoryRepo()
	seedBook(t, store, "1342", "one")
	svc := newTestService(t, store, &fakeLLM{}, Config{})
	h := NewHTTPHandler(svc, ModeStream, 0)

	w := serveAnalysis(t, h, "/books/1342/analysis/summary?mode=buffered")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestHTTPHandler_Analysis_Errors(t *testing.T) {
	failing := func() (io.ReadCloser, error) {
		return nil, fmt.Errorf("%w: status 503", groq.ErrProviderCall)
	}

	tests := []struct {
		name       string
		target     string
		seed       bool
		streamFn   func() (io.ReadCloser, error)
		wantStatus int
		wantCode   string
	}{
		{name: "unknown kind", target: "/books/1342/analysis/poetry", seed: true, wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "unknown mode", target: "/books/1342/analysis/summary?mode=carrier-pigeon", seed: true, wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "unknown book", target: "/books/9999/analysis/summary", wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "provider fails before streaming", target: "/books/1342/analysis/summary", seed: true, streamFn: failing, wantStatus: http.StatusBadGateway, wantCode: "UPSTREAM_FAILURE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemoryRepo()
			if tt.seed {
				seedBook(t, store, "1342", "one")
			}
			svc := newTestService(t, store, &fakeLLM{streamFn: tt.streamFn}, Config{})
			h := NewHTTPHandler(svc, ModeStream, 0)

			w := serveAnalysis(t, h, tt.target)

			resp := testutil.RecordHTTPResponse(w)
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Equal(t, tt.wantCode, resp.ErrorCode())
		})
	}
}
