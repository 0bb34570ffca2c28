package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWriter_Send(t *testing.T) {
	w := httptest.NewRecorder()
	ew := NewEventWriter(w, time.Second)
	assert.False(t, ew.Started())

	require.NoError(t, ew.Send([]byte(`{"content":"Hello"}`)))
	require.NoError(t, ew.Send([]byte(`{"content":" world."}`)))

	assert.True(t, ew.Started())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.True(t, w.Flushed)
	assert.Equal(t, "data: {\"content\":\"Hello\"}\n\ndata: {\"content\":\" world.\"}\n\n", w.Body.String())
}

func TestEventWriter_ThroughAccessLog(t *testing.T) {
	handler := AccessLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ew := NewEventWriter(w, 0)
		assert.NoError(t, ew.Send([]byte(`{"content":"x"}`)))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, w.Flushed)
	assert.Equal(t, "data: {\"content\":\"x\"}\n\n", w.Body.String())
}

func TestEventWriter_OpenWithoutEvents(t *testing.T) {
	w := httptest.NewRecorder()
	ew := NewEventWriter(w, 0)

	require.NoError(t, ew.Open())
	require.NoError(t, ew.Open())

	assert.True(t, ew.Started())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}
