package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometric-ai/prometric/internal/api"
	"github.com/prometric-ai/prometric/internal/api/middleware"
	"github.com/prometric-ai/prometric/internal/service"
)

type OrchestratorService interface {
	Handle(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error)
}

type ChatHandler struct {
	orchestrator OrchestratorService
}

func NewChatHandler(orchestrator OrchestratorService) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator}
}

type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type ToolResultResponse struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ChatResponse struct {
	SessionID   string               `json:"session_id"`
	MessageID   string               `json:"message_id"`
	Content     string               `json:"content"`
	Model       string               `json:"model"`
	Sources     []service.SourceRef  `json:"sources,omitempty"`
	ToolResults []ToolResultResponse `json:"tool_results,omitempty"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	output, err := h.orchestrator.Handle(r.Context(), service.ChatInput{
		OrgID:     middleware.GetOrgID(r.Context()),
		UserID:    middleware.GetUserID(r.Context()),
		Role:      middleware.GetRole(r.Context()),
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ChatResponse{
		SessionID: output.SessionID,
		MessageID: output.MessageID,
		Content:   output.Content,
		Model:     output.Model,
		Sources:   output.Sources,
	}
	for _, tr := range output.ToolResults {
		resp.ToolResults = append(resp.ToolResults, ToolResultResponse{
			Name:    tr.Name,
			Success: tr.Success,
			Output:  tr.Output,
			Error:   tr.Error,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
