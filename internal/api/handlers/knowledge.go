package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prometric-ai/prometric/internal/api"
	"github.com/prometric-ai/prometric/internal/api/middleware"
	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/service"
)

type IngestionService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*domain.KnowledgeDocument, error)
	Reingest(ctx context.Context, orgID, documentID string, input service.IngestInput) (*domain.KnowledgeDocument, error)
	Archive(ctx context.Context, orgID, documentID string) (*domain.KnowledgeDocument, error)
	GetByID(ctx context.Context, orgID, id string) (*domain.KnowledgeDocument, error)
	ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
}

type RetrievalService interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) ([]*domain.ChunkMatch, error)
}

type KnowledgeHandler struct {
	ingestion IngestionService
	retrieval RetrievalService
}

func NewKnowledgeHandler(ingestion IngestionService, retrieval RetrievalService) *KnowledgeHandler {
	return &KnowledgeHandler{ingestion: ingestion, retrieval: retrieval}
}

type IngestRequest struct {
	Title       string `json:"title"`
	SourceType  string `json:"source_type"`
	Content     string `json:"content,omitempty"`
	URL         string `json:"url,omitempty"`
	ObjectKey   string `json:"object_key,omitempty"`
	AccessLevel string `json:"access_level"`
	Language    string `json:"language,omitempty"`
}

type DocumentResponse struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Title       string `json:"title"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url,omitempty"`
	AccessLevel string `json:"access_level"`
	Language    string `json:"language"`
	Status      string `json:"status"`
	WordCount   int    `json:"word_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func documentToResponse(d *domain.KnowledgeDocument) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		OrgID:       d.OrgID,
		Title:       d.Title,
		SourceType:  string(d.SourceType),
		SourceURL:   d.SourceURL,
		AccessLevel: string(d.AccessLevel),
		Language:    d.Language,
		Status:      string(d.Status),
		WordCount:   d.WordCount,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.Format(time.RFC3339),
	}
}

func ingestInputFromRequest(r *http.Request, req IngestRequest) service.IngestInput {
	return service.IngestInput{
		OrgID:       middleware.GetOrgID(r.Context()),
		UserID:      middleware.GetUserID(r.Context()),
		Role:        middleware.GetRole(r.Context()),
		SourceType:  domain.SourceType(req.SourceType),
		Title:       req.Title,
		Content:     req.Content,
		URL:         req.URL,
		ObjectKey:   req.ObjectKey,
		AccessLevel: domain.AccessLevel(req.AccessLevel),
		Language:    req.Language,
	}
}

func (h *KnowledgeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceType == "" {
		api.Error(w, http.StatusBadRequest, "source_type is required")
		return
	}

	doc, err := h.ingestion.Ingest(r.Context(), ingestInputFromRequest(r, req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *KnowledgeHandler) Reingest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.ingestion.Reingest(r.Context(), middleware.GetOrgID(r.Context()), id, ingestInputFromRequest(r, req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.ingestion.GetByID(r.Context(), middleware.GetOrgID(r.Context()), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *KnowledgeHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.ingestion.Archive(r.Context(), middleware.GetOrgID(r.Context()), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.ingestion.ListDocuments(r.Context(), service.ListDocumentsInput{
		OrgID:  middleware.GetOrgID(r.Context()),
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type SearchMatchResponse struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float32 `json:"similarity"`
	SourceURL  string  `json:"source_url,omitempty"`
}

type SearchResponse struct {
	Matches []*SearchMatchResponse `json:"matches"`
}

func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	matches, err := h.retrieval.Retrieve(r.Context(), service.RetrieveInput{
		OrgID: middleware.GetOrgID(r.Context()),
		Role:  middleware.GetRole(r.Context()),
		Query: req.Query,
		TopK:  req.TopK,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchMatchResponse, len(matches))
	for i, m := range matches {
		responses[i] = &SearchMatchResponse{
			ChunkID:    m.ChunkID,
			DocumentID: m.DocumentID,
			Title:      m.Title,
			Content:    m.Content,
			ChunkIndex: m.ChunkIndex,
			Similarity: m.Similarity,
			SourceURL:  m.SourceURL,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Matches: responses})
}
