package book

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) CreateBook(ctx context.Context, b *Book) error {
	const sql = `
		INSERT INTO books (external_id, title, author, language, description, cover_image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, sql,
		b.ExternalID, b.Title, b.Author, b.Language, b.Description, b.CoverImageURL,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrConflict, b.ExternalID)
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *PostgresRepo) FindByExternalID(ctx context.Context, externalID string) (Book, error) {
	const query = `
		SELECT id, external_id, title, author, language, description, cover_image_url, created_at
		FROM books
		WHERE external_id = $1
		LIMIT 1
	`
	var b Book
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, query, externalID).Scan(
		&b.ID, &b.ExternalID, &b.Title, &b.Author, &b.Language, &b.Description, &b.CoverImageURL, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Book, error) {
	const query = `
		SELECT id, external_id, title, author, language, description, cover_image_url, created_at
		FROM books
		ORDER BY created_at DESC, id DESC`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(
			&b.ID, &b.ExternalID, &b.Title, &b.Author, &b.Language, &b.Description, &b.CoverImageURL, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBook removes a book; chunks and summary go with it (ON DELETE CASCADE).
func (r *PostgresRepo) DeleteBook(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) CreateChunks(ctx context.Context, bookID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([][]any, len(chunks))
	for i, c := range chunks {
		rows[i] = []any{bookID, c.Order, c.Text}
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.CopyFrom(timeoutCtx,
		pgx.Identifier{"book_chunks"},
		[]string{"book_id", "chunk_order", "text"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy chunks: %w", err)
	}
	return nil
}

func (r *PostgresRepo) FindChunks(ctx context.Context, bookID string, page int) ([]Chunk, error) {
	const query = `
		SELECT book_id, chunk_order, text
		FROM book_chunks
		WHERE book_id = $1 AND ($2 = 0 OR chunk_order = $2)
		ORDER BY chunk_order ASC`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query, bookID, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.BookID, &c.Order, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindSummary(ctx context.Context, bookID string) (Summary, error) {
	const query = `
		SELECT book_id, summary, created_at
		FROM book_summaries
		WHERE book_id = $1`

	var s Summary
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, query, bookID).Scan(&s.BookID, &s.Text, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrNotFound
		}
		return Summary{}, err
	}
	return s, nil
}

// CreateSummary keeps the first stored summary; later inserts are no-ops.
func (r *PostgresRepo) CreateSummary(ctx context.Context, bookID string, text string) error {
	const sql = `
		INSERT INTO book_summaries (book_id, summary, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (book_id) DO NOTHING`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, sql, bookID, text)
	return err
}
