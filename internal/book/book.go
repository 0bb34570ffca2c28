package book

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a book, chunk or summary does not exist.
	ErrNotFound    = errors.New("book not found")
	// ErrConflict is returned when a book with the same external ID already exists.
	ErrConflict    = errors.New("book already exists")
	// ErrUpstream marks failures of the catalog or the analysis provider.
	ErrUpstream    = errors.New("upstream failure")
	// ErrInvalidPage is returned for a content page below 1.
	ErrInvalidPage = errors.New("invalid page")
)

// Book represents an ingested catalog item.
type Book struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"external_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Language      string    `json:"language"`
	Description   string    `json:"description,omitempty"`
	CoverImageURL *string   `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Ref returns the narrow identity of the book used by the ingestion pipeline.
func (b Book) Ref() Ref {
	return Ref{ID: b.ID, ExternalID: b.ExternalID}
}

// Ref identifies a stored book by its internal and catalog identifiers.
type Ref struct {
	ID         string
	ExternalID string
}

// Validate ensures both identifiers are present.
func (r Ref) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("book ref: missing id")
	}
	if strings.TrimSpace(r.ExternalID) == "" {
		return errors.New("book ref: missing external id")
	}
	return nil
}

// Chunk is one ordered slice of a book's text. Order starts at 1.
type Chunk struct {
	BookID string `json:"book_id"`
	Order  int    `json:"order"`
	Text   string `json:"text"`
}

// Summary is the condensed text used as analysis input.
type Summary struct {
	BookID    string    `json:"book_id"`
	Text      string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// AllPages requests every chunk of a book.
const AllPages = 0
