package ingest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"booklens/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHTTPHandler_Ingest(t *testing.T) {
	catalog := new(mockCatalog)
	catalog.On("FetchMetadata", mock.Anything, "1342").Return(ok(testutil.CatalogPage), nil)
	catalog.On("FetchContent", mock.Anything, "1342").Return(ok("It is a truth universally acknowledged."), nil)

	svc := NewService(catalog, testutil.NewMemoryRepo(), nil, Config{}, nil)
	handler := NewHTTPHandler(svc, "s3cret")

	t.Run("rejects wrong secret", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/internal/ingest/1342", nil)
		r.SetPathValue("id", "1342")
		r.Header.Set("X-Internal-Secret", "nope")
		w := httptest.NewRecorder()

		handler.Ingest(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ingests book", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/internal/ingest/1342", nil)
		r.SetPathValue("id", "1342")
		r.Header.Set("X-Internal-Secret", "s3cret")
		w := httptest.NewRecorder()

		handler.Ingest(w, r)

		res := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusOK, res.Code)
		data := res.Body["data"].(map[string]interface{})
		assert.Equal(t, "Pride and Prejudice", data["title"])
	})
}

func TestHTTPHandler_Runs(t *testing.T) {
	repo := new(mockRunRepo)
	repo.On("RecentRuns", mock.Anything, 20).Return([]Run{{ID: "r1", Status: StatusFailed, Error: "boom"}}, nil)

	handler := NewHTTPHandler(NewService(new(mockCatalog), testutil.NewMemoryRepo(), repo, Config{}, nil), "s3cret")

	request := func(target string) testutil.RecordResponse {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		r.Header.Set("X-Internal-Secret", "s3cret")
		w := httptest.NewRecorder()
		handler.Runs(w, r)
		return testutil.RecordHTTPResponse(w)
	}

	res := request("/internal/ingest/runs")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 1)
	repo.AssertExpectations(t)

	for _, target := range []string{"/internal/ingest/runs?limit=500", "/internal/ingest/runs?limit=0", "/internal/ingest/runs?limit=ten"} {
		res := request(target)
		assert.Equal(t, http.StatusBadRequest, res.Code, target)
		assert.Equal(t, "BAD_REQUEST", res.ErrorCode(), target)
	}
	repo.AssertNumberOfCalls(t, "RecentRuns", 1)
}

func TestHTTPHandler_ClosedWithoutSecret(t *testing.T) {
	handler := NewHTTPHandler(NewService(new(mockCatalog), testutil.NewMemoryRepo(), nil, Config{}, nil), "")

	r := httptest.NewRequest(http.MethodGet, "/internal/ingest/runs", nil)
	r.Header.Set("X-Internal-Secret", "")
	w := httptest.NewRecorder()
	handler.Runs(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
