package book

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=book

// Repository defines the contract for book data storage.
type Repository interface {
	// CreateBook inserts a new book and fills its ID and CreatedAt.
	// It returns ErrConflict when the external ID is already stored.
	CreateBook(ctx context.Context, b *Book) error
	FindByExternalID(ctx context.Context, externalID string) (Book, error)
	// List returns every book, newest first.
	List(ctx context.Context) ([]Book, error)
	DeleteBook(ctx context.Context, id string) error
	CreateChunks(ctx context.Context, bookID string, chunks []Chunk) error
	// FindChunks returns chunks ordered by Order. page == AllPages returns all of them.
	FindChunks(ctx context.Context, bookID string, page int) ([]Chunk, error)
	FindSummary(ctx context.Context, bookID string) (Summary, error)
	CreateSummary(ctx context.Context, bookID string, text string) error
}
