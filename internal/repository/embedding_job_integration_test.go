//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/service"
	"github.com/prometric-ai/prometric/internal/testutil"
)

func seedJob(ctx context.Context, t *testing.T, repo *EmbeddingJobRepository, documentID string, createdAt time.Time) *domain.EmbeddingJob {
	t.Helper()
	job := &domain.EmbeddingJob{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Status:     domain.EmbeddingJobStatusPending,
		CreatedAt:  createdAt,
	}
	require.NoError(t, repo.Create(ctx, job))
	return job
}

func TestEmbeddingJobRepository_PendingQueueOrder(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	jobRepo := NewEmbeddingJobRepository(pool)

	doc := newTestDocument("org-1", "Doc")
	require.NoError(t, docRepo.Create(ctx, doc))

	base := time.Now().UTC().Truncate(time.Microsecond)
	first := seedJob(ctx, t, jobRepo, doc.ID, base)
	second := seedJob(ctx, t, jobRepo, doc.ID, base.Add(time.Second))

	pending, err := jobRepo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)

	// Completed jobs leave the queue and record a processing timestamp.
	require.NoError(t, jobRepo.UpdateStatus(ctx, first.ID, domain.EmbeddingJobStatusCompleted, ""))

	pending, err = jobRepo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	completed, err := jobRepo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingJobStatusCompleted, completed.Status)
	assert.NotNil(t, completed.ProcessedAt)
}

func TestEmbeddingJobRepository_FailureTracking(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	jobRepo := NewEmbeddingJobRepository(pool)

	doc := newTestDocument("org-1", "Doc")
	require.NoError(t, docRepo.Create(ctx, doc))

	job := seedJob(ctx, t, jobRepo, doc.ID, time.Now().UTC())

	require.NoError(t, jobRepo.IncrementRetries(ctx, job.ID))
	require.NoError(t, jobRepo.IncrementRetries(ctx, job.ID))
	require.NoError(t, jobRepo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, "embedding provider unavailable"))

	failed, err := jobRepo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingJobStatusFailed, failed.Status)
	assert.Equal(t, 2, failed.Retries)
	assert.Equal(t, "embedding provider unavailable", failed.Error)

	assert.ErrorIs(t, jobRepo.IncrementRetries(ctx, uuid.NewString()), ErrEmbeddingJobNotFound)
	assert.ErrorIs(t, jobRepo.UpdateStatus(ctx, uuid.NewString(), domain.EmbeddingJobStatusFailed, ""), ErrEmbeddingJobNotFound)
}

func TestTxRunner_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	docRepo := NewDocumentRepository(pool)

	doc := newTestDocument("org-1", "Atomic doc")
	sentinel := errors.New("chunking failed")

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = docRepo.GetByID(ctx, "org-1", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	// The same flow commits when the callback succeeds.
	require.NoError(t, runner.WithTx(ctx, func(repos service.TxRepositories) error {
		return repos.Documents().Create(ctx, doc)
	}))

	retrieved, err := docRepo.GetByID(ctx, "org-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
}
