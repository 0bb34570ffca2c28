package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"booklens/internal/metrics"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("background tasks closed")

// TaskError reports a failed background task.
type TaskError struct {
	Name string
	Err  error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e TaskError) Unwrap() error {
	return e.Err
}

// Background runs detached tasks whose failures are reported on Errors
// instead of reaching the request that started them.
type Background struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	closed  bool
	timeout time.Duration
	errs    chan TaskError
	metrics *metrics.Metrics
}

func NewBackground(timeout time.Duration, m *metrics.Metrics) *Background {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Background{
		timeout: timeout,
		errs:    make(chan TaskError, 16),
		metrics: m,
	}
}

// Go starts fn with its own timeout, independent of any request context.
func (b *Background) Go(name string, fn func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			b.metrics.IncBackgroundError()
			select {
			case b.errs <- TaskError{Name: name, Err: err}:
			default:
				slog.Error("background task failed", slog.String("task", name), slog.Any("error", err))
			}
		}
	}()
	return nil
}

// Errors delivers task failures. When the channel is full the failure is
// logged directly instead.
func (b *Background) Errors() <-chan TaskError {
	return b.errs
}

// LogTaskErrors logs every failure received on errs until ctx is done, then
// logs whatever is still buffered. It returns the number of failures logged.
func LogTaskErrors(ctx context.Context, logger *slog.Logger, errs <-chan TaskError) int {
	n := 0
	logErr := func(e TaskError) {
		n++
		logger.Error("background task failed", slog.String("task", e.Name), slog.Any("error", e.Err))
	}
	for {
		select {
		case e := <-errs:
			logErr(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-errs:
					logErr(e)
				default:
					return n
				}
			}
		}
	}
}

// Close stops accepting tasks and waits for running ones or ctx.
func (b *Background) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
