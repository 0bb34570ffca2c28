package book

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"booklens/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// List handles GET /books
// @Summary List ingested books
// @Description Returns every stored book, newest first
// @Tags books
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /books [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, books, map[string]any{"total": len(books)})
}

// Get handles GET /books/{id}
// @Summary Get a book by catalog ID
// @Description Returns the stored book, ingesting it from the catalog on first access
// @Tags books
// @Produce json
// @Param id path string true "Catalog ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /books/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ExternalIDParam(w, r)
	if !ok {
		return
	}

	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Content handles GET /books/{id}/content
// @Summary Get book content
// @Description Returns the ordered chunks of a book; page selects a single chunk
// @Tags books
// @Produce json
// @Param id path string true "Catalog ID"
// @Param page query int false "Chunk number, starting at 1"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id}/content [get]
func (h *HTTPHandler) Content(w http.ResponseWriter, r *http.Request) {
	id, ok := ExternalIDParam(w, r)
	if !ok {
		return
	}

	page := AllPages
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid page", []httpx.ErrorDetail{
				{Field: "page", Message: "must be a positive integer"},
			})
			return
		}
		page = n
	}

	chunks, err := h.service.Content(r.Context(), id, page)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, chunks, map[string]any{"count": len(chunks)})
}

type idParam struct {
	ID string `path:"id" validate:"required,max=64,catalog_id"`
}

// ExternalIDParam reads and validates the {id} path value. It writes a 400
// response and returns false when the value is unusable.
func ExternalIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := idParam{ID: strings.TrimSpace(r.PathValue("id"))}
	if details := httpx.ValidateStruct(p); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid catalog ID", details)
		return "", false
	}
	return p.ID, true
}

// WriteError maps a domain error onto the JSON error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	case errors.Is(err, ErrConflict):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", "Book already exists", nil)
	case errors.Is(err, ErrUpstream):
		slog.Warn("upstream failure", slog.String("request_id", httpx.RequestIDFrom(r)), slog.Any("error", err))
		httpx.JSONError(w, r, http.StatusBadGateway, "UPSTREAM_FAILURE", "Upstream service failed", nil)
	case errors.Is(err, ErrInvalidPage):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid page", nil)
	default:
		slog.Error("request failed", slog.String("request_id", httpx.RequestIDFrom(r)), slog.Any("error", err))
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
