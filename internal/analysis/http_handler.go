package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"booklens/internal/book"
	"booklens/internal/httpx"
	"booklens/internal/platform/groq"
)

// Mode selects how analysis results reach the caller.
type Mode string

const (
	ModeStream   Mode = "stream"
	ModeBuffered Mode = "buffered"
)

// ParseMode validates a delivery mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeStream, ModeBuffered:
		return m, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q", s)
}

type HTTPHandler struct {
	svc          *Service
	mode         Mode
	writeTimeout time.Duration
}

func NewHTTPHandler(svc *Service, mode Mode, writeTimeout time.Duration) *HTTPHandler {
	if mode == "" {
		mode = ModeStream
	}
	return &HTTPHandler{svc: svc, mode: mode, writeTimeout: writeTimeout}
}

// Result is the buffered analysis payload.
type Result struct {
	Kind    groq.Kind `json:"kind"`
	Content string    `json:"content"`
}

type event struct {
	Content string `json:"content"`
}

// Analysis handles GET /books/{id}/analysis/{kind}
// @Summary Analyze a book
// @Description Runs the characters, language or summary analysis over the book summary.
// @Description Responds with JSON in buffered mode or text/event-stream in stream mode.
// @Tags analysis
// @Produce json
// @Produce text/event-stream
// @Param id path string true "Catalog ID"
// @Param kind path string true "Analysis kind" Enums(characters, language, summary)
// @Param mode query string false "Delivery mode" Enums(stream, buffered)
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /books/{id}/analysis/{kind} [get]
func (h *HTTPHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	id, ok := book.ExternalIDParam(w, r)
	if !ok {
		return
	}
	kind, err := groq.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Unknown analysis kind", []httpx.ErrorDetail{
			{Field: "kind", Message: "must be one of characters, language, summary"},
		})
		return
	}
	mode := h.mode
	if raw := r.URL.Query().Get("mode"); raw != "" {
		if mode, err = ParseMode(raw); err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Unknown delivery mode", []httpx.ErrorDetail{
				{Field: "mode", Message: "must be stream or buffered"},
			})
			return
		}
	}

	if mode == ModeBuffered {
		h.buffered(w, r, id, kind)
		return
	}
	h.stream(w, r, id, kind)
}

func (h *HTTPHandler) buffered(w http.ResponseWriter, r *http.Request, id string, kind groq.Kind) {
	content, err := h.svc.Analyze(r.Context(), id, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, Result{Kind: kind, Content: content}, nil)
}

func (h *HTTPHandler) stream(w http.ResponseWriter, r *http.Request, id string, kind groq.Kind) {
	ew := httpx.NewEventWriter(w, h.writeTimeout)

	err := h.svc.Stream(r.Context(), id, kind, func(segment string) error {
		payload, err := json.Marshal(event{Content: segment})
		if err != nil {
			return err
		}
		return ew.Send(payload)
	})
	if err != nil {
		if !ew.Started() {
			writeError(w, r, err)
			return
		}
		slog.Warn("analysis stream failed", slog.String("request_id", httpx.RequestIDFrom(r)), slog.Any("error", err))
		return
	}
	if err := ew.Open(); err != nil {
		slog.Warn("analysis stream not opened", slog.String("request_id", httpx.RequestIDFrom(r)), slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, groq.ErrProviderCall) {
		slog.Warn("provider call failed", slog.String("request_id", httpx.RequestIDFrom(r)), slog.Any("error", err))
		httpx.JSONError(w, r, http.StatusBadGateway, "UPSTREAM_FAILURE", "Analysis provider failed", nil)
		return
	}
	book.WriteError(w, r, err)
}
