package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"booklens/internal/book"
	"booklens/internal/metrics"
	"booklens/internal/platform/groq"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Analyzer is the completion provider as seen by the analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, kind groq.Kind, text string) (string, error)
	AnalyzeStream(ctx context.Context, kind groq.Kind, text string) (io.ReadCloser, error)
	SummarizeChunk(ctx context.Context, text string) (string, error)
}

type Config struct {
	// SummaryConcurrency caps parallel chunk summaries; 0 means one call per chunk at once.
	SummaryConcurrency int
	SummaryCacheSize   int
	FlushThreshold     int
	PersistTimeout     time.Duration
}

type Service struct {
	books    book.Repository
	llm      Analyzer
	cfg      Config
	cache    *lru.Cache[string, string]
	inflight singleflight.Group
	tasks    *Background
	metrics  *metrics.Metrics
}

func NewService(books book.Repository, llm Analyzer, cfg Config, m *metrics.Metrics) (*Service, error) {
	if cfg.SummaryCacheSize <= 0 {
		cfg.SummaryCacheSize = 256
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}
	cache, err := lru.New[string, string](cfg.SummaryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("summary cache: %w", err)
	}
	return &Service{
		books:   books,
		llm:     llm,
		cfg:     cfg,
		cache:   cache,
		tasks:   NewBackground(cfg.PersistTimeout, m),
		metrics: m,
	}, nil
}

// TaskErrors reports failed summary writes.
func (s *Service) TaskErrors() <-chan TaskError {
	return s.tasks.Errors()
}

// Close waits for pending summary writes.
func (s *Service) Close(ctx context.Context) error {
	return s.tasks.Close(ctx)
}

// Summary returns the condensed text for a stored book, computing and
// persisting it on first use.
func (s *Service) Summary(ctx context.Context, externalID string) (string, error) {
	b, err := s.books.FindByExternalID(ctx, externalID)
	if err != nil {
		return "", err
	}
	return s.summaryFor(ctx, b)
}

// Analyze runs kind over the book summary and returns the whole result.
func (s *Service) Analyze(ctx context.Context, externalID string, kind groq.Kind) (string, error) {
	text, err := s.Summary(ctx, externalID)
	if err != nil {
		return "", err
	}
	out, err := s.llm.Analyze(ctx, kind, text)
	if err != nil {
		return "", fmt.Errorf("analyze %s for %s: %w", kind, externalID, err)
	}
	return out, nil
}

// Stream runs kind over the book summary and hands each relay segment to
// sink as soon as it is ready. Errors that happen before the provider stream
// opens are returned. Once streaming has begun, upstream failures and sink
// failures are logged and end the stream.
func (s *Service) Stream(ctx context.Context, externalID string, kind groq.Kind, sink func(segment string) error) error {
	text, err := s.Summary(ctx, externalID)
	if err != nil {
		return err
	}
	body, err := s.llm.AnalyzeStream(ctx, kind, text)
	if err != nil {
		return fmt.Errorf("stream %s for %s: %w", kind, externalID, err)
	}
	defer body.Close()

	relay := NewRelay(s.cfg.FlushThreshold)
	defer func() {
		s.metrics.AddMalformedFrames(relay.Malformed())
		if n := relay.Malformed(); n > 0 {
			slog.Debug("skipped malformed stream frames", slog.String("external_id", externalID), slog.Int("count", n))
		}
	}()

	for seg, err := range relay.Segments(body) {
		if err != nil {
			slog.Warn("analysis stream interrupted",
				slog.String("external_id", externalID),
				slog.String("kind", string(kind)),
				slog.Any("error", err),
			)
			return nil
		}
		if err := sink(seg); err != nil {
			slog.Info("analysis stream client gone",
				slog.String("external_id", externalID),
				slog.Any("error", err),
			)
			return nil
		}
		s.metrics.IncRelaySegment()
	}
	return nil
}

func (s *Service) summaryFor(ctx context.Context, b book.Book) (string, error) {
	if text, ok := s.cache.Get(b.ID); ok {
		s.metrics.IncSummaryLookup("cache")
		return text, nil
	}

	ch := s.inflight.DoChan(b.ID, func() (any, error) {
		return s.loadOrCompute(context.WithoutCancel(ctx), b)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Service) loadOrCompute(ctx context.Context, b book.Book) (string, error) {
	stored, err := s.books.FindSummary(ctx, b.ID)
	if err == nil {
		s.cache.Add(b.ID, stored.Text)
		s.metrics.IncSummaryLookup("store")
		return stored.Text, nil
	}
	if !errors.Is(err, book.ErrNotFound) {
		return "", fmt.Errorf("find summary: %w", err)
	}

	chunks, err := s.books.FindChunks(ctx, b.ID, book.AllPages)
	if err != nil {
		return "", fmt.Errorf("find chunks: %w", err)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: no content for %s", book.ErrNotFound, b.ExternalID)
	}

	text, err := s.summarizeChunks(ctx, chunks)
	if err != nil {
		return "", err
	}
	s.cache.Add(b.ID, text)
	s.metrics.IncSummaryLookup("computed")

	bookID := b.ID
	if err := s.tasks.Go("persist summary "+bookID, func(ctx context.Context) error {
		return s.books.CreateSummary(ctx, bookID, text)
	}); err != nil {
		slog.Warn("summary not persisted", slog.String("book_id", bookID), slog.Any("error", err))
	}
	return text, nil
}

// summarizeChunks summarizes every chunk concurrently and joins the results
// in chunk order.
func (s *Service) summarizeChunks(ctx context.Context, chunks []book.Chunk) (string, error) {
	parts := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.SummaryConcurrency > 0 {
		g.SetLimit(s.cfg.SummaryConcurrency)
	}
	for i, c := range chunks {
		g.Go(func() error {
			out, err := s.llm.SummarizeChunk(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("summarize chunk %d: %w", c.Order, err)
			}
			parts[i] = strings.TrimSpace(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(parts, "\n\n"), nil
}
