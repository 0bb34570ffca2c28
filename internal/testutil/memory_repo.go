package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"booklens/internal/book"
)

// MemoryRepo is an in-memory book.Repository with the same conflict and
// ordering rules as the Postgres store.
type MemoryRepo struct {
	mu        sync.Mutex
	seq       int
	clock     time.Time
	books     map[string]book.Book
	chunks    map[string][]book.Chunk
	summaries map[string]book.Summary

	// Counters for assertions.
	CreateBookCalls    int
	CreateSummaryCalls int

	// Optional failure injection.
	CreateChunksErr error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		books:     make(map[string]book.Book),
		chunks:    make(map[string][]book.Chunk),
		summaries: make(map[string]book.Summary),
	}
}

func (m *MemoryRepo) CreateBook(_ context.Context, b *book.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateBookCalls++
	for _, existing := range m.books {
		if existing.ExternalID == b.ExternalID {
			return fmt.Errorf("%w: %s", book.ErrConflict, b.ExternalID)
		}
	}
	m.seq++
	m.clock = m.clock.Add(time.Second)
	b.ID = fmt.Sprintf("book-%d", m.seq)
	b.CreatedAt = m.clock
	m.books[b.ID] = *b
	return nil
}

func (m *MemoryRepo) FindByExternalID(_ context.Context, externalID string) (book.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.books {
		if b.ExternalID == externalID {
			return b, nil
		}
	}
	return book.Book{}, book.ErrNotFound
}

func (m *MemoryRepo) List(_ context.Context) ([]book.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]book.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepo) DeleteBook(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return book.ErrNotFound
	}
	delete(m.books, id)
	delete(m.chunks, id)
	delete(m.summaries, id)
	return nil
}

func (m *MemoryRepo) CreateChunks(_ context.Context, bookID string, chunks []book.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateChunksErr != nil {
		return m.CreateChunksErr
	}
	for _, c := range chunks {
		c.BookID = bookID
		m.chunks[bookID] = append(m.chunks[bookID], c)
	}
	return nil
}

func (m *MemoryRepo) FindChunks(_ context.Context, bookID string, page int) ([]book.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []book.Chunk
	for _, c := range m.chunks[bookID] {
		if page == book.AllPages || c.Order == page {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *MemoryRepo) FindSummary(_ context.Context, bookID string) (book.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[bookID]
	if !ok {
		return book.Summary{}, book.ErrNotFound
	}
	return s, nil
}

func (m *MemoryRepo) CreateSummary(_ context.Context, bookID string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateSummaryCalls++
	if _, ok := m.summaries[bookID]; ok {
		return nil
	}
	m.summaries[bookID] = book.Summary{BookID: bookID, Text: text, CreatedAt: m.clock}
	return nil
}

// Books returns the number of stored books.
func (m *MemoryRepo) Books() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books)
}
