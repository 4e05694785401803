package domain

import "time"

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending   EmbeddingJobStatus = "pending"
	EmbeddingJobStatusCompleted EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed    EmbeddingJobStatus = "failed"
)

// EmbeddingJob queues embedding computation for a document's chunks. A failed
// job leaves the document's chunks un-embedded; they are excluded from search
// until the job is retried.
type EmbeddingJob struct {
	ID          string
	DocumentID  string
	Status      EmbeddingJobStatus
	Retries     int
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// IsValidEmbeddingJobStatus checks if an EmbeddingJobStatus is valid
func IsValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
