package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// EventWriter writes server-sent events and flushes each one to the client.
type EventWriter struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
	started      bool
}

// NewEventWriter prepares w for an event stream. writeTimeout bounds each
// write; zero disables the per-write deadline.
func NewEventWriter(w http.ResponseWriter, writeTimeout time.Duration) *EventWriter {
	return &EventWriter{
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
	}
}

// Started reports whether the stream headers have been sent.
func (e *EventWriter) Started() bool {
	return e.started
}

// Open sends the stream headers if they have not been sent yet.
func (e *EventWriter) Open() error {
	if e.started {
		return nil
	}
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	e.started = true
	return e.flush()
}

func (e *EventWriter) flush() error {
	if err := e.rc.Flush(); err != nil {
		if errors.Is(err, http.ErrNotSupported) {
			return ErrStreamingUnsupported
		}
		return err
	}
	return nil
}

// Send writes one `data:` event carrying payload and flushes it.
func (e *EventWriter) Send(payload []byte) error {
	if err := e.Open(); err != nil {
		return err
	}
	if e.writeTimeout > 0 {
		if err := e.rc.SetWriteDeadline(time.Now().Add(e.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return e.flush()
}
