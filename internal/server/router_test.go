package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prometric-ai/prometric/internal/api/handlers"
	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/service"
)

type stubIngestion struct{}

func (stubIngestion) Ingest(ctx context.Context, input service.IngestInput) (*domain.KnowledgeDocument, error) {
	return nil, domain.ErrEmptyContent
}

func (stubIngestion) Reingest(ctx context.Context, orgID, documentID string, input service.IngestInput) (*domain.KnowledgeDocument, error) {
	return nil, domain.ErrDocumentNotFound
}

func (stubIngestion) Archive(ctx context.Context, orgID, documentID string) (*domain.KnowledgeDocument, error) {
	return nil, domain.ErrDocumentNotFound
}

func (stubIngestion) GetByID(ctx context.Context, orgID, id string) (*domain.KnowledgeDocument, error) {
	return nil, domain.ErrDocumentNotFound
}

func (stubIngestion) ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	return &service.ListDocumentsOutput{}, nil
}

type stubRetrieval struct{}

func (stubRetrieval) Retrieve(ctx context.Context, input service.RetrieveInput) ([]*domain.ChunkMatch, error) {
	return nil, nil
}

type stubOrchestrator struct{}

func (stubOrchestrator) Handle(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error) {
	return &service.ChatOutput{SessionID: "sess-1", MessageID: "msg-1", Content: "ok", Model: "gpt-4o-mini"}, nil
}

type stubLearning struct{}

func (stubLearning) RecordFeedback(ctx context.Context, orgID, userID string, payload domain.FeedbackPayload) error {
	return nil
}

func newTestRouter() http.Handler {
	return NewRouter(RouterConfig{
		KnowledgeHandler: handlers.NewKnowledgeHandler(stubIngestion{}, stubRetrieval{}),
		ChatHandler:      handlers.NewChatHandler(stubOrchestrator{}),
		FeedbackHandler:  handlers.NewFeedbackHandler(stubLearning{}),
	})
}

func TestRouterHealthIsPublic(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterProtectedRoutesRequireIdentity(t *testing.T) {
	router := newTestRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/knowledge"},
		{http.MethodGet, "/knowledge"},
		{http.MethodGet, "/knowledge/some-id"},
		{http.MethodPost, "/search"},
		{http.MethodPost, "/chat"},
		{http.MethodPost, "/feedback"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, bytes.NewBufferString("{}"))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRouterDispatchesWithIdentity(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"message":"hello"}`))
	req.Header.Set("X-Org-ID", "org-1")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	router := newTestRouter()

	// One byte past the 5 MiB cap.
	big := bytes.Repeat([]byte("a"), 5*1024*1024+1)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(big))
	req.Header.Set("X-Org-ID", "org-1")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}
