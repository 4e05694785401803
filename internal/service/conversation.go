package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/telemetry"
)

// ConversationRepositoryInterface defines the repository interface for conversation persistence
type ConversationRepositoryInterface interface {
	CreateSession(ctx context.Context, s *domain.ConversationSession) error
	GetSession(ctx context.Context, orgID, id string) (*domain.ConversationSession, error)
	AppendMessage(ctx context.Context, m *domain.ConversationMessage) error
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*domain.ConversationMessage, error)
}

// sessionLockStripes bounds lock memory regardless of how many sessions a
// process ever touches. Two sessions sharing a stripe serialize against each
// other, which is harmless; a session never spans two stripes.
const sessionLockStripes = 64

// ConversationService manages sessions and their append-only message history.
// Appends are serialized per session so sequence numbers stay gapless and
// strictly increasing.
type ConversationService struct {
	repo          ConversationRepositoryInterface
	uuidGen       UUIDGenerator
	assistantName string
	contextLimit  int

	locks [sessionLockStripes]sync.Mutex
}

func NewConversationService(repo ConversationRepositoryInterface, assistantName string, contextLimit int) *ConversationService {
	if contextLimit <= 0 {
		contextLimit = 10
	}
	return &ConversationService{
		repo:          repo,
		uuidGen:       &DefaultUUIDGenerator{},
		assistantName: assistantName,
		contextLimit:  contextLimit,
	}
}

// NewConversationServiceWithUUIDGen creates a ConversationService with a custom UUID generator (for testing)
func NewConversationServiceWithUUIDGen(repo ConversationRepositoryInterface, assistantName string, contextLimit int, uuidGen UUIDGenerator) *ConversationService {
	s := NewConversationService(repo, assistantName, contextLimit)
	s.uuidGen = uuidGen
	return s
}

// StartSession creates a new active session for the user.
func (s *ConversationService) StartSession(ctx context.Context, orgID, userID string) (*domain.ConversationSession, error) {
	if orgID == "" {
		return nil, domain.ErrMissingOrgID
	}
	if userID == "" {
		return nil, domain.ErrMissingUserID
	}

	session := domain.NewConversationSession(s.uuidGen.NewString(), orgID, userID, s.assistantName, time.Now().UTC())
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ResolveSession returns the existing session or starts a new one when no
// session ID is given.
func (s *ConversationService) ResolveSession(ctx context.Context, orgID, userID, sessionID string) (*domain.ConversationSession, error) {
	if sessionID == "" {
		return s.StartSession(ctx, orgID, userID)
	}
	return s.repo.GetSession(ctx, orgID, sessionID)
}

// AppendMessage appends a message to the session history and assigns its
// sequence number.
func (s *ConversationService) AppendMessage(ctx context.Context, sessionID string, role domain.MessageRole, content string, metadata domain.MessageMetadata) (*domain.ConversationMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.AppendMessage", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "append_message",
	})
	defer span.End()

	msg := &domain.ConversationMessage{
		ID:        s.uuidGen.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := domain.ValidateMessage(msg); err != nil {
		return nil, err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		span.SetError(err)
		return nil, err
	}
	return msg, nil
}

// GetContext returns the most recent messages of a session in chronological
// order, bounded by the configured context window.
func (s *ConversationService) GetContext(ctx context.Context, sessionID string) ([]*domain.ConversationMessage, error) {
	return s.repo.GetRecentMessages(ctx, sessionID, s.contextLimit)
}

func (s *ConversationService) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%sessionLockStripes]
}
