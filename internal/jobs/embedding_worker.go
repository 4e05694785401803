package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/telemetry"
)

const (
	// MaxRetries bounds how often a failing embedding job is retried before
	// it is marked failed.
	MaxRetries = 3

	defaultJobBatch = 10
)

// EmbeddingJobStore is the slice of the job repository the processor needs.
type EmbeddingJobStore interface {
	GetPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error)
	UpdateStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// ChunkStore is the slice of the chunk repository the processor needs.
type ChunkStore interface {
	ListUnembedded(ctx context.Context, documentID string) ([]*domain.DocumentChunk, error)
	UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32) error
}

// DocumentStatusStore flips a document's lifecycle status.
type DocumentStatusStore interface {
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
}

// BatchEmbedder converts chunk texts into vectors in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingProcessor drains pending embedding jobs. A document becomes active
// only after every one of its chunks is embedded; a job that keeps failing is
// marked failed after MaxRetries and its document stays in processing.
type EmbeddingProcessor struct {
	jobs     EmbeddingJobStore
	chunks   ChunkStore
	docs     DocumentStatusStore
	embedder BatchEmbedder
	batch    int
}

func NewEmbeddingProcessor(jobs EmbeddingJobStore, chunks ChunkStore, docs DocumentStatusStore, embedder BatchEmbedder) *EmbeddingProcessor {
	return &EmbeddingProcessor{
		jobs:     jobs,
		chunks:   chunks,
		docs:     docs,
		embedder: embedder,
		batch:    defaultJobBatch,
	}
}

// Process handles one batch of pending jobs. Per-job failures are recorded on
// the job and do not abort the batch.
func (p *EmbeddingProcessor) Process(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingProcessor.Process", telemetry.SpanAttributes{
		Operation: "embed_documents",
	})
	defer span.End()

	pending, err := p.jobs.GetPending(ctx, p.batch)
	if err != nil {
		span.SetError(err)
		return err
	}

	for _, job := range pending {
		if err := p.processJob(ctx, job); err != nil {
			p.recordFailure(ctx, job, err)
		}
	}
	return nil
}

func (p *EmbeddingProcessor) processJob(ctx context.Context, job *domain.EmbeddingJob) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingProcessor.processJob", telemetry.SpanAttributes{
		DocumentID: job.DocumentID,
		Operation:  "embed_document",
	})
	defer span.End()

	chunks, err := p.chunks.ListUnembedded(ctx, job.DocumentID)
	if err != nil {
		return err
	}

	if len(chunks) > 0 {
		texts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			texts = append(texts, c.Content)
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(vectors))
		}

		for i, c := range chunks {
			if err := p.chunks.UpdateEmbedding(ctx, c.ID, vectors[i]); err != nil {
				return err
			}
		}
	}

	if err := p.jobs.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""); err != nil {
		return err
	}
	if err := p.docs.UpdateStatus(ctx, job.DocumentID, domain.DocumentStatusActive); err != nil {
		return err
	}

	log.Printf("embedding: document %s activated (%d chunks)", job.DocumentID, len(chunks))
	return nil
}

func (p *EmbeddingProcessor) recordFailure(ctx context.Context, job *domain.EmbeddingJob, cause error) {
	log.Printf("embedding: job %s failed (attempt %d): %v", job.ID, job.Retries+1, cause)

	if err := p.jobs.IncrementRetries(ctx, job.ID); err != nil {
		log.Printf("embedding: failed to increment retries for job %s: %v", job.ID, err)
		return
	}

	if job.Retries+1 >= MaxRetries {
		if err := p.jobs.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, cause.Error()); err != nil {
			log.Printf("embedding: failed to mark job %s failed: %v", job.ID, err)
		}
	}
}
