package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"booklens/internal/book"
	"booklens/internal/config"
	"booklens/internal/ingest"
	"booklens/internal/platform/gutenberg"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func main() {
	config.LoadEnvFiles()

	app := &cli.App{
		Name:  "seed",
		Usage: "pre-ingest catalog books into the store",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "id",
				Usage:    "catalog ID to ingest (repeatable)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "only log errors",
			},
		},
		Action: seedAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func seedAction(c *cli.Context) error {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(c.Context, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.RedactedDSN(), err)
	}
	defer pool.Close()

	catalog := gutenberg.NewClient(gutenberg.Options{
		BaseURL:    cfg.CatalogBaseURL,
		UserAgent:  cfg.CatalogUserAgent,
		RPS:        cfg.CatalogRPS,
		MaxRetries: cfg.CatalogMaxRetries,
		Timeout:    cfg.HTTPClientTimeout,
	})
	svc := newIngestService(cfg, catalog, book.NewPostgresRepo(pool, cfg.DBTimeout), ingest.NewPostgresRepo(pool))
	return seed(c.Context, svc, c.StringSlice("id"))
}

// newIngestService builds the pipeline without metrics; a one-shot command
// has no scrape endpoint.
func newIngestService(cfg config.Config, catalog ingest.CatalogClient, books book.Repository, runs ingest.Repository) *ingest.Service {
	return ingest.NewService(catalog, books, runs, ingest.Config{ChunkSize: cfg.ChunkSize}, nil)
}

type resolver interface {
	Resolve(ctx context.Context, externalID string) (book.Book, error)
}

// seed resolves each ID in turn and keeps going past failures.
func seed(ctx context.Context, r resolver, ids []string) error {
	var errs []error
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		b, err := r.Resolve(ctx, id)
		if err != nil {
			slog.Error("ingest failed", slog.String("external_id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		slog.Info("book ready",
			slog.String("external_id", b.ExternalID),
			slog.String("book_id", b.ID),
			slog.String("title", b.Title),
		)
	}
	return errors.Join(errs...)
}
