package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booklens/internal/analysis"
	"booklens/internal/book"
	"booklens/internal/config"
	"booklens/internal/httpx"
	"booklens/internal/ingest"
	"booklens/internal/metrics"
	"booklens/internal/platform/groq"
	"booklens/internal/platform/gutenberg"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	config.LoadEnvFiles()

	if err := run(); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireProvider(); err != nil {
		return err
	}
	mode, err := analysis.ParseMode(cfg.AnalysisMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	m := metrics.New()

	bookRepository := book.NewPostgresRepo(dbPool, cfg.DBTimeout)
	runRepository := ingest.NewPostgresRepo(dbPool)

	catalog := gutenberg.NewClient(gutenberg.Options{
		BaseURL:    cfg.CatalogBaseURL,
		UserAgent:  cfg.CatalogUserAgent,
		RPS:        cfg.CatalogRPS,
		MaxRetries: cfg.CatalogMaxRetries,
		Timeout:    cfg.HTTPClientTimeout,
		Metrics:    m,
	})
	provider := groq.NewClient(groq.Config{
		APIKey:  cfg.GroqAPIKey,
		BaseURL: cfg.GroqBaseURL,
		Model:   cfg.GroqModel,
		Timeout: cfg.HTTPClientTimeout,
		Metrics: m,
	})

	ingestService := ingest.NewService(catalog, bookRepository, runRepository, ingest.Config{ChunkSize: cfg.ChunkSize}, m)
	bookService := book.NewService(bookRepository, ingestService)
	analysisService, err := analysis.NewService(bookRepository, provider, analysis.Config{
		SummaryConcurrency: cfg.SummaryConcurrency,
		SummaryCacheSize:   cfg.SummaryCacheSize,
		FlushThreshold:     cfg.StreamFlushThreshold,
		PersistTimeout:     cfg.SummaryPersistTimeout,
	}, m)
	if err != nil {
		return err
	}

	// runs until after analysisService.Close so shutdown failures are logged too
	logCtx, stopLogging := context.WithCancel(context.Background())
	defer stopLogging()
	taskLogDone := make(chan struct{})
	go func() {
		defer close(taskLogDone)
		analysis.LogTaskErrors(logCtx, slog.Default(), analysisService.TaskErrors())
	}()

	rateLimiter := httpx.NewRateLimitMiddleware(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	handler := newRouter(routes{
		books:    book.NewHTTPHandler(bookService),
		analysis: analysis.NewHTTPHandler(analysisService, mode, cfg.StreamWriteTimeout),
		ingest:   ingest.NewHTTPHandler(ingestService, cfg.InternalSecret),
		metrics:  m.Handler(),
		ready:    dbPool.Ping,
	})
	handler = withMiddleware(handler, cfg, rateLimiter.Middleware)

	httpServer := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// WriteTimeout stays unset: analysis streams extend their own per-write deadline.
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", cfg.AppAddr), slog.String("analysis_mode", string(mode)))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", slog.Any("error", err))
	}
	if err := analysisService.Close(shutdownCtx); err != nil {
		slog.Warn("pending summary writes abandoned", slog.Any("error", err))
	}
	stopLogging()
	<-taskLogDone
	return nil
}

func openDB(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		slog.Error("cannot ping database", slog.String("dsn", cfg.RedactedDSN()))
		return nil, err
	}
	slog.Info("database connection OK")
	return pool, nil
}
