package ingest

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"booklens/internal/book"
	"booklens/internal/httpx"
)

const defaultRunsLimit = 20

type runsQuery struct {
	Limit int `query:"limit" validate:"min=1,max=100"`
}

type HTTPHandler struct {
	svc    *Service
	secret string
}

func NewHTTPHandler(svc *Service, secret string) *HTTPHandler {
	return &HTTPHandler{svc: svc, secret: secret}
}

// authorized reports whether r carries the internal secret. Without a
// configured secret the internal routes stay closed.
func (h *HTTPHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	given := r.Header.Get("X-Internal-Secret")
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) == 1
}

// Ingest handles POST /internal/ingest/{id}
// @Summary Ingest a catalog book
// @Description Resolves a catalog ID, ingesting the book when it is not stored yet
// @Tags internal
// @Produce json
// @Param X-Internal-Secret header string false "Internal secret"
// @Param id path string true "Catalog ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /internal/ingest/{id} [post]
func (h *HTTPHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid internal secret", nil)
		return
	}
	id, ok := book.ExternalIDParam(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Resolve(r.Context(), id)
	if err != nil {
		book.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Runs handles GET /internal/ingest/runs
// @Summary List ingestion runs
// @Tags internal
// @Produce json
// @Param X-Internal-Secret header string false "Internal secret"
// @Param limit query int false "Maximum runs" default(20)
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Router /internal/ingest/runs [get]
func (h *HTTPHandler) Runs(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid internal secret", nil)
		return
	}

	q := runsQuery{Limit: defaultRunsLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid limit", []httpx.ErrorDetail{
				{Field: "limit", Message: "limit must be an integer"},
			})
			return
		}
		q.Limit = n
	}
	if details := httpx.ValidateStruct(q); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid limit", details)
		return
	}
	limit := q.Limit

	runs, err := h.svc.RecentRuns(r.Context(), limit)
	if err != nil {
		book.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, runs, map[string]any{"limit": limit})
}
