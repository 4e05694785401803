package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/pagination"
	"github.com/prometric-ai/prometric/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.KnowledgeDocument) error
	GetByID(ctx context.Context, orgID, id string) (*domain.KnowledgeDocument, error)
	ListByOrgWithCursor(ctx context.Context, orgID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	UpdateContent(ctx context.Context, d *domain.KnowledgeDocument) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	Delete(ctx context.Context, orgID, id string) error
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.DocumentChunk) error
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

type DocumentPageResult struct {
	Items      []*domain.KnowledgeDocument
	NextCursor string
	HasMore    bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestInput represents the input for ingesting a knowledge document.
// Exactly one of Content, URL or ObjectKey must be set, matching SourceType.
type IngestInput struct {
	OrgID       string
	UserID      string
	Role        domain.Role
	SourceType  domain.SourceType
	Title       string
	Content     string
	URL         string
	ObjectKey   string
	AccessLevel domain.AccessLevel
	Language    string
}

type ListDocumentsInput struct {
	OrgID  string
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.KnowledgeDocument
	Cursor  string
	HasMore bool
}

// IngestionService turns raw organization text into chunked, embeddable
// documents. Embeddings are computed asynchronously by the job worker; until
// then the document stays in the processing state and its chunks are
// invisible to search.
type IngestionService struct {
	tx       TxRunner
	docRepo  DocumentRepositoryInterface
	resolver SourceResolver
	chunkCfg ChunkConfig
	uuidGen  UUIDGenerator
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(tx TxRunner, docRepo DocumentRepositoryInterface, resolver SourceResolver, chunkCfg ChunkConfig) *IngestionService {
	return &IngestionService{
		tx:       tx,
		docRepo:  docRepo,
		resolver: resolver,
		chunkCfg: chunkCfg,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewIngestionServiceWithUUIDGen creates an IngestionService with a custom UUID generator (for testing)
func NewIngestionServiceWithUUIDGen(tx TxRunner, docRepo DocumentRepositoryInterface, resolver SourceResolver, chunkCfg ChunkConfig, uuidGen UUIDGenerator) *IngestionService {
	s := NewIngestionService(tx, docRepo, resolver, chunkCfg)
	s.uuidGen = uuidGen
	return s
}

// Ingest validates the request, resolves the source text, chunks it and
// commits document + chunks + embedding job atomically.
func (s *IngestionService) Ingest(ctx context.Context, input IngestInput) (*domain.KnowledgeDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		UserID:    input.UserID,
		Operation: "ingest",
	})
	defer span.End()

	if err := validateIngestInput(input); err != nil {
		return nil, err
	}
	if !domain.CanWriteAccessLevel(input.Role, input.AccessLevel) {
		return nil, domain.ErrAccessLevelDenied
	}

	// Source resolution is the only I/O before the transaction; a fetch
	// failure is fatal for ingestion.
	content, sourceURL, err := s.resolver.Resolve(ctx, input)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	normalized := NormalizeText(content)
	if normalized == "" {
		return nil, domain.ErrEmptyContent
	}

	now := time.Now().UTC()
	doc := domain.NewKnowledgeDocument(
		s.uuidGen.NewString(),
		input.OrgID,
		resolveTitle(input.Title, normalized),
		input.SourceType,
		sourceURL,
		input.AccessLevel,
		resolveLanguage(input.Language),
		normalized,
		now,
	)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	chunks := s.buildChunks(doc, now)
	job := &domain.EmbeddingJob{
		ID:         s.uuidGen.NewString(),
		DocumentID: doc.ID,
		Status:     domain.EmbeddingJobStatusPending,
		CreatedAt:  now,
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		if err := repos.Chunks().ReplaceChunks(ctx, doc.ID, chunks); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, job)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

// Reingest replaces a document's content and re-chunks it. The document drops
// back to processing until the new chunks are embedded.
func (s *IngestionService) Reingest(ctx context.Context, orgID, documentID string, input IngestInput) (*domain.KnowledgeDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Reingest", telemetry.SpanAttributes{
		OrgID:      orgID,
		DocumentID: documentID,
		Operation:  "reingest",
	})
	defer span.End()

	if err := validateIngestInput(input); err != nil {
		return nil, err
	}
	if !domain.CanWriteAccessLevel(input.Role, input.AccessLevel) {
		return nil, domain.ErrAccessLevelDenied
	}

	doc, err := s.docRepo.GetByID(ctx, orgID, documentID)
	if err != nil {
		return nil, err
	}

	content, sourceURL, err := s.resolver.Resolve(ctx, input)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	normalized := NormalizeText(content)
	if normalized == "" {
		return nil, domain.ErrEmptyContent
	}

	now := time.Now().UTC()
	doc.Title = resolveTitle(input.Title, normalized)
	doc.SourceType = input.SourceType
	doc.SourceURL = sourceURL
	doc.AccessLevel = input.AccessLevel
	doc.Language = resolveLanguage(input.Language)
	doc.Status = domain.DocumentStatusProcessing
	doc.Content = normalized
	doc.WordCount = domain.CountWords(normalized)

	chunks := s.buildChunks(doc, now)
	job := &domain.EmbeddingJob{
		ID:         s.uuidGen.NewString(),
		DocumentID: doc.ID,
		Status:     domain.EmbeddingJobStatusPending,
		CreatedAt:  now,
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().UpdateContent(ctx, doc); err != nil {
			return err
		}
		if err := repos.Chunks().ReplaceChunks(ctx, doc.ID, chunks); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, job)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

// Archive removes a document from the searchable corpus without deleting it.
func (s *IngestionService) Archive(ctx context.Context, orgID, documentID string) (*domain.KnowledgeDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Archive", telemetry.SpanAttributes{
		OrgID:      orgID,
		DocumentID: documentID,
		Operation:  "archive",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, orgID, documentID)
	if err != nil {
		return nil, err
	}

	if err := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusArchived); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatusArchived
	return doc, nil
}

// GetByID retrieves a document within an organization
func (s *IngestionService) GetByID(ctx context.Context, orgID, id string) (*domain.KnowledgeDocument, error) {
	return s.docRepo.GetByID(ctx, orgID, id)
}

func (s *IngestionService) ListDocuments(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.ListDocuments", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.docRepo.ListByOrgWithCursor(ctx, input.OrgID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

func (s *IngestionService) buildChunks(doc *domain.KnowledgeDocument, now time.Time) []domain.DocumentChunk {
	segments := ChunkText(doc.Content, s.chunkCfg)
	chunks := make([]domain.DocumentChunk, 0, len(segments))
	for i, segment := range segments {
		chunks = append(chunks, domain.DocumentChunk{
			ID:          s.uuidGen.NewString(),
			DocumentID:  doc.ID,
			OrgID:       doc.OrgID,
			ChunkIndex:  i,
			Content:     segment,
			AccessLevel: doc.AccessLevel,
			Language:    doc.Language,
			CreatedAt:   now,
		})
	}
	return chunks
}

func validateIngestInput(input IngestInput) error {
	if input.OrgID == "" {
		return domain.ErrMissingOrgID
	}
	if input.UserID == "" {
		return domain.ErrMissingUserID
	}
	if !domain.IsValidRole(input.Role) {
		return domain.ErrInvalidRole
	}
	if !domain.IsValidSourceType(input.SourceType) {
		return domain.ErrInvalidSourceType
	}
	if !domain.IsValidAccessLevel(input.AccessLevel) {
		return domain.ErrInvalidAccessLevel
	}
	switch input.SourceType {
	case domain.SourceTypeManual:
		if strings.TrimSpace(input.Content) == "" {
			return domain.ErrEmptyContent
		}
	case domain.SourceTypeWebsite:
		if strings.TrimSpace(input.URL) == "" {
			return domain.NewDomainError(domain.ErrCodeValidation, "website source requires a URL")
		}
	case domain.SourceTypeFile:
		if strings.TrimSpace(input.ObjectKey) == "" {
			return domain.NewDomainError(domain.ErrCodeValidation, "file source requires an object key")
		}
	}
	return nil
}

func resolveTitle(title, content string) string {
	title = strings.TrimSpace(title)
	if title != "" {
		return title
	}
	// Fall back to the first line of content, clipped.
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	runes := []rune(strings.TrimSpace(line))
	if len(runes) > 80 {
		runes = runes[:80]
	}
	return string(runes)
}

func resolveLanguage(language string) string {
	language = strings.TrimSpace(strings.ToLower(language))
	if language == "" {
		return "en"
	}
	return language
}
