package book

import (
	"context"
	"fmt"
)

// Resolver returns a stored book, ingesting it from the catalog when absent.
type Resolver interface {
	Resolve(ctx context.Context, externalID string) (Book, error)
}

// Service provides book-related business logic.
type Service struct {
	repo     Repository
	resolver Resolver
}

// NewService creates a new book service.
func NewService(repo Repository, resolver Resolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// List returns all books, newest first.
func (s *Service) List(ctx context.Context) ([]Book, error) {
	return s.repo.List(ctx)
}

// Get returns a book by its catalog ID, triggering ingestion if needed.
func (s *Service) Get(ctx context.Context, externalID string) (Book, error) {
	return s.resolver.Resolve(ctx, externalID)
}

// Content returns the chunks of a stored book. page == AllPages returns every chunk.
func (s *Service) Content(ctx context.Context, externalID string, page int) ([]Chunk, error) {
	if page < AllPages {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	b, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.repo.FindChunks(ctx, b.ID, page)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no content for page %d", ErrNotFound, page)
	}
	return chunks, nil
}
