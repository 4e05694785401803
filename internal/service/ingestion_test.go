package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/pagination"
)

type seqUUIDGen struct {
	n int
}

func (g *seqUUIDGen) NewString() string {
	g.n++
	return fmt.Sprintf("uuid-%d", g.n)
}

type fakeTxStore struct {
	docs      map[string]*domain.KnowledgeDocument
	chunks    map[string][]domain.DocumentChunk
	jobs      []*domain.EmbeddingJob
	failOn    string
	committed int
}

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{
		docs:   map[string]*domain.KnowledgeDocument{},
		chunks: map[string][]domain.DocumentChunk{},
	}
}

func (f *fakeTxStore) WithTx(_ context.Context, fn func(TxRepositories) error) error {
	staging := newFakeTxStore()
	staging.failOn = f.failOn
	for k, v := range f.docs {
		staging.docs[k] = v
	}
	for k, v := range f.chunks {
		staging.chunks[k] = v
	}
	staging.jobs = append(staging.jobs, f.jobs...)

	if err := fn(&fakeTxRepos{store: staging}); err != nil {
		return err
	}

	f.docs = staging.docs
	f.chunks = staging.chunks
	f.jobs = staging.jobs
	f.committed++
	return nil
}

type fakeTxRepos struct {
	store *fakeTxStore
}

func (r *fakeTxRepos) Documents() DocumentRepositoryInterface       { return &fakeDocRepo{store: r.store} }
func (r *fakeTxRepos) Chunks() ChunkRepositoryInterface             { return &fakeChunkRepo{store: r.store} }
func (r *fakeTxRepos) EmbeddingJobs() EmbeddingJobRepositoryInterface { return &fakeJobRepo{store: r.store} }

type fakeDocRepo struct {
	store *fakeTxStore
}

func (f *fakeDocRepo) Create(_ context.Context, d *domain.KnowledgeDocument) error {
	if f.store.failOn == "create" {
		return fmt.Errorf("create failed")
	}
	f.store.docs[d.ID] = d
	return nil
}

func (f *fakeDocRepo) GetByID(_ context.Context, orgID, id string) (*domain.KnowledgeDocument, error) {
	d, ok := f.store.docs[id]
	if !ok || d.OrgID != orgID {
		return nil, domain.ErrDocumentNotFound
	}
	return d, nil
}

func (f *fakeDocRepo) ListByOrgWithCursor(_ context.Context, orgID string, _ *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	var items []*domain.KnowledgeDocument
	for _, d := range f.store.docs {
		if d.OrgID == orgID {
			items = append(items, d)
		}
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return &DocumentPageResult{Items: items}, nil
}

func (f *fakeDocRepo) UpdateContent(_ context.Context, d *domain.KnowledgeDocument) error {
	f.store.docs[d.ID] = d
	return nil
}

func (f *fakeDocRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus) error {
	d, ok := f.store.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	d.Status = status
	return nil
}

func (f *fakeDocRepo) Delete(_ context.Context, orgID, id string) error {
	delete(f.store.docs, id)
	return nil
}

type fakeChunkRepo struct {
	store *fakeTxStore
}

func (f *fakeChunkRepo) ReplaceChunks(_ context.Context, documentID string, chunks []domain.DocumentChunk) error {
	if f.store.failOn == "chunks" {
		return fmt.Errorf("chunk insert failed")
	}
	f.store.chunks[documentID] = chunks
	return nil
}

type fakeJobRepo struct {
	store *fakeTxStore
}

func (f *fakeJobRepo) Create(_ context.Context, job *domain.EmbeddingJob) error {
	f.store.jobs = append(f.store.jobs, job)
	return nil
}

type staticResolver struct{}

func (staticResolver) Resolve(_ context.Context, input IngestInput) (string, string, error) {
	return input.Content, input.URL, nil
}

func newTestIngestion(store *fakeTxStore) *IngestionService {
	return NewIngestionServiceWithUUIDGen(
		store,
		&fakeDocRepo{store: store},
		staticResolver{},
		ChunkConfig{TargetSize: 50, Overlap: 10},
		&seqUUIDGen{},
	)
}

func manualInput(content string) IngestInput {
	return IngestInput{
		OrgID:       "org-1",
		UserID:      "user-1",
		Role:        domain.RoleAdmin,
		SourceType:  domain.SourceTypeManual,
		Title:       "Test document",
		Content:     content,
		AccessLevel: domain.AccessLevelPublic,
		Language:    "en",
	}
}

func TestIngestCreatesDocumentChunksAndJob(t *testing.T) {
	store := newFakeTxStore()
	svc := newTestIngestion(store)

	content := strings.Repeat("Business knowledge paragraph. ", 10)
	doc, err := svc.Ingest(context.Background(), manualInput(content))
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentStatusProcessing, doc.Status)
	assert.Equal(t, "Test document", doc.Title)
	assert.NotZero(t, doc.WordCount)
	assert.Equal(t, 1, store.committed)

	chunks := store.chunks[doc.ID]
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, doc.OrgID, c.OrgID)
		assert.Equal(t, doc.AccessLevel, c.AccessLevel)
		assert.Nil(t, c.Embedding)
	}

	require.Len(t, store.jobs, 1)
	assert.Equal(t, doc.ID, store.jobs[0].DocumentID)
	assert.Equal(t, domain.EmbeddingJobStatusPending, store.jobs[0].Status)
}

func TestIngestRollsBackOnChunkFailure(t *testing.T) {
	store := newFakeTxStore()
	store.failOn = "chunks"
	svc := newTestIngestion(store)

	_, err := svc.Ingest(context.Background(), manualInput("Some content to ingest."))
	require.Error(t, err)

	assert.Empty(t, store.docs)
	assert.Empty(t, store.jobs)
	assert.Zero(t, store.committed)
}

func TestIngestEnforcesWritePolicy(t *testing.T) {
	store := newFakeTxStore()
	svc := newTestIngestion(store)

	input := manualInput("Restricted content.")
	input.Role = domain.RoleManager
	input.AccessLevel = domain.AccessLevelRestricted

	_, err := svc.Ingest(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrAccessLevelDenied)

	input.Role = domain.RoleViewer
	input.AccessLevel = domain.AccessLevelPublic
	_, err = svc.Ingest(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrAccessLevelDenied)
}

func TestIngestValidation(t *testing.T) {
	store := newFakeTxStore()
	svc := newTestIngestion(store)

	input := manualInput("content")
	input.OrgID = ""
	_, err := svc.Ingest(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrMissingOrgID)

	input = manualInput("   ")
	_, err = svc.Ingest(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	input = manualInput("content")
	input.SourceType = domain.SourceType("rss")
	_, err = svc.Ingest(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrInvalidSourceType)

	input = manualInput("content")
	input.SourceType = domain.SourceTypeWebsite
	input.URL = ""
	_, err = svc.Ingest(context.Background(), input)
	require.Error(t, err)
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeValidation, derr.Code)
}

func TestIngestDerivesTitleFromContent(t *testing.T) {
	store := newFakeTxStore()
	svc := newTestIngestion(store)

	input := manualInput("Opening hours and contact details\n\nWe are open from 9 to 18.")
	input.Title = ""

	doc, err := svc.Ingest(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "Opening hours and contact details", doc.Title)
}

func TestReingestResetsStatusAndReplacesChunks(t *testing.T) {
	store := newFakeTxStore()
	svc := newTestIngestion(store)

	doc, err := svc.Ingest(context.Background(), manualInput("Original content."))
	require.NoError(t, err)

	// Simulate the embedding worker finishing.
	store.docs[doc.ID].Status = domain.DocumentStatusActive

	updated, err := svc.Reingest(context.Background(), "org-1", doc.ID, manualInput("Replacement content with new facts."))
	require.NoError(t, err)

	assert.Equal(t, doc.ID, updated.ID)
	assert.Equal(t, domain.DocumentStatusProcessing, updated.Status)
	assert.Contains(t, updated.Content, "Replacement content")
	assert.Len(t, store.jobs, 2)
}

func TestReingestMissingDocument(t *testing.T) {
	store := newFakeTxStore()
	svc := newTestIngestion(store)

	_, err := svc.Reingest(context.Background(), "org-1", "missing", manualInput("content"))
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestArchiveDocument(t *testing.T) {
	store := newFakeTxStore()
	svc := newTestIngestion(store)

	doc, err := svc.Ingest(context.Background(), manualInput("Content to archive."))
	require.NoError(t, err)

	archived, err := svc.Archive(context.Background(), "org-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusArchived, archived.Status)
	assert.Equal(t, domain.DocumentStatusArchived, store.docs[doc.ID].Status)

	_, err = svc.Archive(context.Background(), "org-2", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
