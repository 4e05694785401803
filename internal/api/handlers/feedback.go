package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometric-ai/prometric/internal/api"
	"github.com/prometric-ai/prometric/internal/api/middleware"
	"github.com/prometric-ai/prometric/internal/domain"
)

type FeedbackService interface {
	RecordFeedback(ctx context.Context, orgID, userID string, payload domain.FeedbackPayload) error
}

type FeedbackHandler struct {
	learning FeedbackService
}

func NewFeedbackHandler(learning FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{learning: learning}
}

type FeedbackRequest struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.learning.RecordFeedback(r.Context(),
		middleware.GetOrgID(r.Context()),
		middleware.GetUserID(r.Context()),
		domain.FeedbackPayload{
			SessionID: req.SessionID,
			MessageID: req.MessageID,
			Rating:    req.Rating,
			Comment:   req.Comment,
		})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}
