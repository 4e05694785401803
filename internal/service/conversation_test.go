package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometric-ai/prometric/internal/domain"
)

type fakeConversationRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.ConversationSession
	messages map[string][]*domain.ConversationMessage
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		sessions: map[string]*domain.ConversationSession{},
		messages: map[string][]*domain.ConversationMessage{},
	}
}

func (f *fakeConversationRepo) CreateSession(_ context.Context, s *domain.ConversationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeConversationRepo) GetSession(_ context.Context, orgID, id string) (*domain.ConversationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.OrgID != orgID {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeConversationRepo) AppendMessage(_ context.Context, m *domain.ConversationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.Seq = int64(len(f.messages[m.SessionID]) + 1)
	f.messages[m.SessionID] = append(f.messages[m.SessionID], m)
	return nil
}

func (f *fakeConversationRepo) GetRecentMessages(_ context.Context, sessionID string, limit int) ([]*domain.ConversationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.messages[sessionID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func TestStartSessionRequiresIdentity(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo(), "Aida", 10)

	_, err := svc.StartSession(context.Background(), "", "user-1")
	assert.ErrorIs(t, err, domain.ErrMissingOrgID)

	_, err = svc.StartSession(context.Background(), "org-1", "")
	assert.ErrorIs(t, err, domain.ErrMissingUserID)
}

func TestResolveSessionCreatesWhenMissing(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo, "Aida", 10)

	session, err := svc.ResolveSession(context.Background(), "org-1", "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, session.Status)
	assert.Equal(t, "Aida", session.AssistantName)

	same, err := svc.ResolveSession(context.Background(), "org-1", "user-1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, same.ID)
}

func TestResolveSessionEnforcesOrgScope(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo, "Aida", 10)

	session, err := svc.StartSession(context.Background(), "org-1", "user-1")
	require.NoError(t, err)

	_, err = svc.ResolveSession(context.Background(), "org-2", "user-1", session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAppendMessageAssignsIncreasingSeq(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo, "Aida", 10)

	session, err := svc.StartSession(context.Background(), "org-1", "user-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AppendMessage(context.Background(), session.ID, domain.MessageRoleUser, fmt.Sprintf("message %d", i), domain.MessageMetadata{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	messages, err := repo.GetRecentMessages(context.Background(), session.ID, 100)
	require.NoError(t, err)
	require.Len(t, messages, 20)
	for i, m := range messages {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}

func TestAppendMessageValidatesRole(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo(), "Aida", 10)

	_, err := svc.AppendMessage(context.Background(), "session-1", domain.MessageRole("bot"), "hi", domain.MessageMetadata{})
	assert.ErrorIs(t, err, domain.ErrInvalidMessageRole)
}

func TestGetContextBoundsWindow(t *testing.T) {
	repo := newFakeConversationRepo()
	svc := NewConversationService(repo, "Aida", 3)

	session, err := svc.StartSession(context.Background(), "org-1", "user-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.AppendMessage(context.Background(), session.ID, domain.MessageRoleUser, fmt.Sprintf("message %d", i), domain.MessageMetadata{})
		require.NoError(t, err)
	}

	context3, err := svc.GetContext(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, context3, 3)
	assert.Equal(t, "message 2", context3[0].Content)
	assert.Equal(t, "message 4", context3[2].Content)
}

func TestSessionLocksAreBounded(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo(), "Aida", 10)

	distinct := map[*sync.Mutex]bool{}
	for i := 0; i < 10000; i++ {
		distinct[svc.sessionLock(fmt.Sprintf("session-%d", i))] = true
	}
	assert.LessOrEqual(t, len(distinct), sessionLockStripes)

	// Stable mapping keeps per-session serialization intact.
	assert.Same(t, svc.sessionLock("session-42"), svc.sessionLock("session-42"))
}
