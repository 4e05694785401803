package service

import (
	"context"
	"log"
	"strings"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/telemetry"
)

// Embedder converts text into vectors. Implemented by the OpenAI client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkSearchQuery is the parameter set for a vector similarity search.
type ChunkSearchQuery struct {
	Vector        []float32
	OrgID         string
	AccessLevels  []domain.AccessLevel
	TopK          int
	MinSimilarity float32
}

// ChunkSearcher runs a similarity search over embedded chunks.
type ChunkSearcher interface {
	Search(ctx context.Context, q ChunkSearchQuery) ([]*domain.ChunkMatch, error)
}

// RetrievalConfig bounds the search results.
type RetrievalConfig struct {
	TopK          int
	MinSimilarity float32
}

type RetrieveInput struct {
	OrgID string
	Role  domain.Role
	Query string
	TopK  int
}

// RetrievalService embeds a query and finds the most similar chunks the
// caller's role is allowed to see. An embedding outage degrades to an empty
// result instead of failing the caller.
type RetrievalService struct {
	embedder Embedder
	searcher ChunkSearcher
	cfg      RetrievalConfig
}

func NewRetrievalService(embedder Embedder, searcher ChunkSearcher, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &RetrievalService{embedder: embedder, searcher: searcher, cfg: cfg}
}

func (s *RetrievalService) Retrieve(ctx context.Context, input RetrieveInput) ([]*domain.ChunkMatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		Operation: "retrieve",
	})
	defer span.End()

	if input.OrgID == "" {
		return nil, domain.ErrMissingOrgID
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		// Retrieval is best effort; answer without context rather than fail.
		log.Printf("retrieval: query embedding failed, degrading to empty context: %v", err)
		span.SetError(err)
		return []*domain.ChunkMatch{}, nil
	}

	topK := input.TopK
	if topK <= 0 || topK > s.cfg.TopK {
		topK = s.cfg.TopK
	}

	matches, err := s.searcher.Search(ctx, ChunkSearchQuery{
		Vector:        vector,
		OrgID:         input.OrgID,
		AccessLevels:  domain.AllowedAccessLevels(input.Role),
		TopK:          topK,
		MinSimilarity: s.cfg.MinSimilarity,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if matches == nil {
		matches = []*domain.ChunkMatch{}
	}
	return matches, nil
}
