package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prometric-ai/prometric/internal/domain"
)

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, q ChunkSearchQuery) ([]*domain.ChunkMatch, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChunkMatch), args.Error(1)
}

func TestRetrieveScopesSearchByRole(t *testing.T) {
	embedder := new(mockEmbedder)
	searcher := new(mockSearcher)
	svc := NewRetrievalService(embedder, searcher, RetrievalConfig{TopK: 5, MinSimilarity: 0.7})

	vector := []float32{0.1, 0.2, 0.3}
	matches := []*domain.ChunkMatch{
		{ChunkID: "chunk-1", DocumentID: "doc-1", Similarity: 0.91},
	}

	embedder.On("Embed", mock.Anything, "refund policy").Return(vector, nil)
	searcher.On("Search", mock.Anything, mock.MatchedBy(func(q ChunkSearchQuery) bool {
		return q.OrgID == "org-1" &&
			len(q.AccessLevels) == 2 &&
			q.TopK == 5 &&
			q.MinSimilarity == float32(0.7)
	})).Return(matches, nil)

	result, err := svc.Retrieve(context.Background(), RetrieveInput{
		OrgID: "org-1",
		Role:  domain.RoleManager,
		Query: "refund policy",
	})

	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "chunk-1", result[0].ChunkID)
	embedder.AssertExpectations(t)
	searcher.AssertExpectations(t)
}

func TestRetrieveDegradesOnEmbeddingFailure(t *testing.T) {
	embedder := new(mockEmbedder)
	searcher := new(mockSearcher)
	svc := NewRetrievalService(embedder, searcher, RetrievalConfig{TopK: 5, MinSimilarity: 0.7})

	embedder.On("Embed", mock.Anything, "anything").Return(nil, domain.ErrEmbeddingUnavailable)

	result, err := svc.Retrieve(context.Background(), RetrieveInput{
		OrgID: "org-1",
		Role:  domain.RoleAdmin,
		Query: "anything",
	})

	require.NoError(t, err)
	assert.Empty(t, result)
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	svc := NewRetrievalService(new(mockEmbedder), new(mockSearcher), RetrievalConfig{TopK: 5})

	_, err := svc.Retrieve(context.Background(), RetrieveInput{
		OrgID: "org-1",
		Role:  domain.RoleViewer,
		Query: "   ",
	})

	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestRetrieveClampsTopK(t *testing.T) {
	embedder := new(mockEmbedder)
	searcher := new(mockSearcher)
	svc := NewRetrievalService(embedder, searcher, RetrievalConfig{TopK: 5, MinSimilarity: 0.5})

	embedder.On("Embed", mock.Anything, "q").Return([]float32{0.5}, nil)
	searcher.On("Search", mock.Anything, mock.MatchedBy(func(q ChunkSearchQuery) bool {
		return q.TopK == 5
	})).Return([]*domain.ChunkMatch{}, nil)

	result, err := svc.Retrieve(context.Background(), RetrieveInput{
		OrgID: "org-1",
		Role:  domain.RoleOwner,
		Query: "q",
		TopK:  50,
	})

	require.NoError(t, err)
	assert.Empty(t, result)
	searcher.AssertExpectations(t)
}
