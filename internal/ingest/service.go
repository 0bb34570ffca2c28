package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"booklens/internal/book"
	"booklens/internal/metrics"
	"booklens/internal/platform/gutenberg"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Config struct {
	ChunkSize int
}

type CatalogClient interface {
	FetchMetadata(ctx context.Context, id string) (gutenberg.Response, error)
	FetchContent(ctx context.Context, id string) (gutenberg.Response, error)
}

// Service resolves catalog IDs to stored books, ingesting them on first use.
type Service struct {
	catalog  CatalogClient
	books    book.Repository
	runs     Repository
	cfg      Config
	metrics  *metrics.Metrics
	inflight singleflight.Group
}

// NewService wires the ingestion pipeline. runs and m may be nil.
func NewService(catalog CatalogClient, books book.Repository, runs Repository, cfg Config, m *metrics.Metrics) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Service{
		catalog: catalog,
		books:   books,
		runs:    runs,
		cfg:     cfg,
		metrics: m,
	}
}

// Resolve returns the stored book for externalID, ingesting it from the
// catalog when it is not stored yet. Concurrent calls for the same ID share
// one ingestion, which keeps running if the caller goes away.
func (s *Service) Resolve(ctx context.Context, externalID string) (book.Book, error) {
	if err := ctx.Err(); err != nil {
		return book.Book{}, err
	}
	ch := s.inflight.DoChan(externalID, func() (any, error) {
		return s.resolve(context.WithoutCancel(ctx), externalID)
	})

	select {
	case <-ctx.Done():
		return book.Book{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return book.Book{}, res.Err
		}
		return res.Val.(book.Book), nil
	}
}

// RecentRuns lists the latest ingestion attempts, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if s.runs == nil {
		return []Run{}, nil
	}
	return s.runs.RecentRuns(ctx, limit)
}

func (s *Service) resolve(ctx context.Context, externalID string) (book.Book, error) {
	var (
		stored   book.Book
		found    bool
		page     gutenberg.Response
		fetchErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.books.FindByExternalID(gctx, externalID)
		switch {
		case err == nil:
			stored, found = b, true
		case errors.Is(err, book.ErrNotFound):
		default:
			return fmt.Errorf("find book %s: %w", externalID, err)
		}
		return nil
	})
	g.Go(func() error {
		page, fetchErr = s.catalog.FetchMetadata(gctx, externalID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return book.Book{}, err
	}

	if found {
		s.metrics.IncIngestion("found")
		return stored, nil
	}
	if fetchErr != nil {
		s.metrics.IncIngestion("upstream_error")
		return book.Book{}, fmt.Errorf("%w: %w", book.ErrUpstream, fetchErr)
	}
	if !page.OK() {
		s.metrics.IncIngestion("not_found")
		return book.Book{}, fmt.Errorf("%w: catalog id %s (status %d)", book.ErrNotFound, externalID, page.StatusCode)
	}

	return s.ingest(ctx, externalID, page.Body)
}

func (s *Service) ingest(ctx context.Context, externalID, markup string) (b book.Book, err error) {
	run := s.startRun(ctx, externalID)
	defer func() {
		s.finishRun(ctx, run, err)
	}()

	md, err := gutenberg.ParseMetadata(markup)
	if err != nil {
		return book.Book{}, fmt.Errorf("%w: %w", book.ErrUpstream, err)
	}

	content, err := s.catalog.FetchContent(ctx, externalID)
	if err != nil {
		s.metrics.IncIngestion("upstream_error")
		return book.Book{}, fmt.Errorf("%w: %w", book.ErrUpstream, err)
	}
	if !content.OK() {
		s.metrics.IncIngestion("upstream_error")
		return book.Book{}, fmt.Errorf("%w: content for %s returned status %d", book.ErrUpstream, externalID, content.StatusCode)
	}

	texts := Split(content.Body, s.cfg.ChunkSize)
	if len(texts) == 0 {
		s.metrics.IncIngestion("upstream_error")
		return book.Book{}, fmt.Errorf("%w: content for %s is empty", book.ErrUpstream, externalID)
	}
	run.ContentChars = utf8.RuneCountInString(content.Body)

	b = book.Book{
		ExternalID:    externalID,
		Title:         md.Title,
		Author:        md.Author,
		Language:      md.Language,
		Description:   md.Description,
		CoverImageURL: md.CoverImageURL,
	}
	if err := s.books.CreateBook(ctx, &b); err != nil {
		if !errors.Is(err, book.ErrConflict) {
			return book.Book{}, fmt.Errorf("create book: %w", err)
		}
		winner, findErr := s.books.FindByExternalID(ctx, externalID)
		if findErr != nil {
			return book.Book{}, fmt.Errorf("re-read %s after conflict: %w", externalID, findErr)
		}
		s.metrics.IncIngestion("conflict")
		run.BookID = winner.ID
		return winner, nil
	}

	chunks, err := ChunksFor(b.Ref(), texts)
	if err == nil {
		err = s.books.CreateChunks(ctx, b.ID, chunks)
	}
	if err != nil {
		if delErr := s.books.DeleteBook(ctx, b.ID); delErr != nil {
			slog.Error("compensating book delete failed",
				slog.String("book_id", b.ID),
				slog.String("external_id", externalID),
				slog.Any("error", delErr),
			)
		}
		return book.Book{}, fmt.Errorf("store chunks for %s: %w", externalID, err)
	}

	run.BookID = b.ID
	run.ChunkCount = len(chunks)
	s.metrics.AddChunks(len(chunks))
	s.metrics.IncIngestion("created")
	slog.Info("book ingested",
		slog.String("book_id", b.ID),
		slog.String("external_id", externalID),
		slog.Int("chunks", len(chunks)),
		slog.Int("chars", run.ContentChars),
	)
	return b, nil
}

func (s *Service) startRun(ctx context.Context, externalID string) *Run {
	run := &Run{
		ExternalID: externalID,
		Status:     StatusRunning,
		StartedAt:  time.Now(),
	}
	if s.runs == nil {
		return run
	}
	id, err := s.runs.CreateRun(ctx, run)
	if err != nil {
		slog.Warn("failed to record ingest run", slog.String("external_id", externalID), slog.Any("error", err))
		return run
	}
	run.ID = id
	return run
}

func (s *Service) finishRun(ctx context.Context, run *Run, err error) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = StatusCompleted
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	}
	if s.runs == nil || run.ID == "" {
		return
	}
	if updateErr := s.runs.UpdateRun(ctx, run); updateErr != nil {
		slog.Warn("failed to update ingest run", slog.String("run_id", run.ID), slog.Any("error", updateErr))
	}
}
