package domain

import (
	"encoding/json"
	"time"
)

// LearningEventType represents the kind of usage signal being recorded
type LearningEventType string

const (
	EventTypeFeedback              LearningEventType = "feedback"
	EventTypeFunctionExecuted      LearningEventType = "functionExecuted"
	EventTypeConversationCompleted LearningEventType = "conversationCompleted"
)

// LearningEvent is an append-only usage signal. It is mutated exactly once by
// the batch pipeline, which flips the Processed flag. Events carry no foreign
// keys to documents or sessions; they are analytic, not transactional.
type LearningEvent struct {
	ID        string
	OrgID     string
	UserID    string
	EventType LearningEventType
	Payload   json.RawMessage
	Metadata  json.RawMessage
	Timestamp time.Time
	Processed bool
}

// InsightImpact grades how urgent an insight is
type InsightImpact string

const (
	InsightImpactLow      InsightImpact = "low"
	InsightImpactMedium   InsightImpact = "medium"
	InsightImpactHigh     InsightImpact = "high"
	InsightImpactCritical InsightImpact = "critical"
)

// InsightStatus represents the review state of an insight
type InsightStatus string

const (
	InsightStatusPending   InsightStatus = "pending"
	InsightStatusApplied   InsightStatus = "applied"
	InsightStatusDismissed InsightStatus = "dismissed"
)

// InsightTypePerformanceIssue flags sustained low feedback ratings for an org.
const InsightTypePerformanceIssue = "PERFORMANCE_ISSUE"

// LearningInsight is derived by the batch pipeline only, never created
// synchronously on the request path.
type LearningInsight struct {
	ID              string
	OrgID           string
	Type            string
	Title           string
	Description     string
	Confidence      float32 // 0..1
	Impact          InsightImpact
	Recommendations []string
	Status          InsightStatus
	CreatedAt       time.Time
}

// FeedbackPayload is the payload shape of EventTypeFeedback events.
type FeedbackPayload struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// FunctionExecutedPayload is the payload shape of EventTypeFunctionExecuted events.
type FunctionExecutedPayload struct {
	SessionID string `json:"session_id"`
	Tool      string `json:"tool"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ValidateEvent validates a LearningEvent instance
func ValidateEvent(e *LearningEvent) error {
	if e == nil {
		return NewDomainError(ErrCodeValidation, "event cannot be nil")
	}
	if e.OrgID == "" {
		return ErrMissingOrgID
	}
	if !IsValidEventType(e.EventType) {
		return ErrInvalidEventType
	}
	return nil
}

// IsValidEventType checks if a LearningEventType is valid
func IsValidEventType(t LearningEventType) bool {
	switch t {
	case EventTypeFeedback, EventTypeFunctionExecuted, EventTypeConversationCompleted:
		return true
	}
	return false
}
