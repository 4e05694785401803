package domain

import "time"

// DocumentChunk is a bounded segment of a document's text, independently
// embeddable and retrievable. OrgID, AccessLevel and Language are denormalized
// from the parent document at creation time for fast search filtering.
// Embedding is nil until computed; a chunk without an embedding is never
// returned by search.
type DocumentChunk struct {
	ID          string
	DocumentID  string
	OrgID       string
	ChunkIndex  int
	Content     string
	Embedding   []float32
	AccessLevel AccessLevel
	Language    string
	CreatedAt   time.Time
}

// ChunkMatch is a search hit with its cosine similarity score and provenance.
type ChunkMatch struct {
	ChunkID    string
	DocumentID string
	Title      string
	Content    string
	ChunkIndex int
	Similarity float32
	SourceURL  string
}
