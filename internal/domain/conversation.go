package domain

import "time"

// SessionStatus represents the lifecycle status of a conversation session
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// MessageRole represents who authored a conversation message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ConversationSession owns an ordered sequence of messages for one user within
// an organization. Sessions are created on the first turn of an interaction
// and never deleted by the orchestration path.
type ConversationSession struct {
	ID            string
	OrgID         string
	UserID        string
	AssistantName string
	Status        SessionStatus
	CreatedAt     time.Time
}

// MessageMetadata carries per-message generation details.
type MessageMetadata struct {
	Tokens      int      `json:"tokens,omitempty"`
	Model       string   `json:"model,omitempty"`
	ChunkIDs    []string `json:"chunk_ids,omitempty"`
	Confidence  float32  `json:"confidence,omitempty"`
	ToolResults []string `json:"tool_results,omitempty"`
}

// ConversationMessage is immutable once written. Messages are totally ordered
// by CreatedAt then by Seq within a session and are never reordered.
type ConversationMessage struct {
	ID        string
	SessionID string
	Role      MessageRole
	Content   string
	Metadata  MessageMetadata
	Seq       int64
	CreatedAt time.Time
}

// NewConversationSession creates an active session.
func NewConversationSession(id, orgID, userID, assistantName string, now time.Time) *ConversationSession {
	return &ConversationSession{
		ID:            id,
		OrgID:         orgID,
		UserID:        userID,
		AssistantName: assistantName,
		Status:        SessionStatusActive,
		CreatedAt:     now,
	}
}

// ValidateMessage validates a ConversationMessage instance
func ValidateMessage(m *ConversationMessage) error {
	if m == nil {
		return NewDomainError(ErrCodeValidation, "message cannot be nil")
	}
	if m.SessionID == "" {
		return NewDomainError(ErrCodeValidation, "message SessionID is required")
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	if !IsValidMessageRole(m.Role) {
		return ErrInvalidMessageRole
	}
	return nil
}

// IsValidMessageRole checks if a MessageRole is valid
func IsValidMessageRole(r MessageRole) bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	}
	return false
}
