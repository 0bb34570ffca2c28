package ingest

import (
	"time"
)

const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Run records one ingestion attempt for a catalog ID.
type Run struct {
	ID           string     `json:"id"`
	ExternalID   string     `json:"external_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"` // RUNNING, COMPLETED, FAILED
	BookID       string     `json:"book_id,omitempty"`
	ChunkCount   int        `json:"chunk_count"`
	ContentChars int        `json:"content_chars"`
	Error        string     `json:"error,omitempty"`
}
