package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prometric-ai/prometric/internal/domain"
)

// ConversationRepository persists sessions and their ordered message history.
type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

func (r *ConversationRepository) CreateSession(ctx context.Context, s *domain.ConversationSession) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversation_sessions (id, org_id, user_id, assistant_name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.OrgID, s.UserID, s.AssistantName, s.Status, s.CreatedAt,
	)
	return err
}

func (r *ConversationRepository) GetSession(ctx context.Context, orgID, id string) (*domain.ConversationSession, error) {
	var s domain.ConversationSession
	err := r.db.QueryRow(ctx,
		`SELECT id, org_id, user_id, assistant_name, status, created_at
		 FROM conversation_sessions WHERE id = $1 AND org_id = $2`,
		id, orgID,
	).Scan(&s.ID, &s.OrgID, &s.UserID, &s.AssistantName, &s.Status, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// AppendMessage inserts a message with the next sequence number for its
// session. Callers serialize appends per session; the subquery then assigns a
// gapless, monotonically increasing seq.
func (r *ConversationRepository) AppendMessage(ctx context.Context, m *domain.ConversationMessage) error {
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO conversation_messages (id, session_id, role, content, metadata, seq, created_at)
		 VALUES ($1, $2, $3, $4, $5,
		         COALESCE((SELECT MAX(seq) FROM conversation_messages WHERE session_id = $2), 0) + 1,
		         $6)
		 RETURNING seq`,
		m.ID, m.SessionID, m.Role, m.Content, metadata, m.CreatedAt,
	).Scan(&m.Seq)
}

// GetRecentMessages returns the most recent limit messages of a session in
// ascending chronological order. Sessions with fewer messages return all.
func (r *ConversationRepository) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*domain.ConversationMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, role, content, metadata, seq, created_at FROM (
		    SELECT id, session_id, role, content, metadata, seq, created_at
		    FROM conversation_messages
		    WHERE session_id = $1
		    ORDER BY created_at DESC, seq DESC
		    LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, seq ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.ConversationMessage
	for rows.Next() {
		var m domain.ConversationMessage
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &metadata, &m.Seq, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				return nil, err
			}
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
