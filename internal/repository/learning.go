package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/service"
)

// LearningRepository persists the append-only event log and derived insights.
type LearningRepository struct {
	db dbtx
}

func NewLearningRepository(pool *pgxpool.Pool) *LearningRepository {
	return &LearningRepository{db: pool}
}

func NewLearningRepositoryWithTx(tx pgx.Tx) *LearningRepository {
	return &LearningRepository{db: tx}
}

func (r *LearningRepository) InsertEvent(ctx context.Context, e *domain.LearningEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO learning_events (id, org_id, user_id, event_type, payload, metadata, occurred_at, processed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.OrgID, e.UserID, e.EventType, []byte(e.Payload), []byte(e.Metadata), e.Timestamp, e.Processed,
	)
	return err
}

// GetUnprocessed returns the oldest unprocessed events, bounded by limit so a
// single batch run cannot monopolize resources.
func (r *LearningRepository) GetUnprocessed(ctx context.Context, limit int) ([]*domain.LearningEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, org_id, user_id, event_type, payload, metadata, occurred_at, processed
		 FROM learning_events
		 WHERE processed = FALSE
		 ORDER BY occurred_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.LearningEvent
	for rows.Next() {
		var e domain.LearningEvent
		var payload, metadata []byte
		if err := rows.Scan(&e.ID, &e.OrgID, &e.UserID, &e.EventType, &payload, &metadata, &e.Timestamp, &e.Processed); err != nil {
			return nil, err
		}
		e.Payload = payload
		e.Metadata = metadata
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *LearningRepository) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE learning_events SET processed = TRUE WHERE id = ANY($1)`,
		ids,
	)
	return err
}

// FlagToolFailures marks failed tool executions in event metadata so they
// remain queryable after the batch moves on.
func (r *LearningRepository) FlagToolFailures(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE learning_events
		 SET metadata = COALESCE(metadata, '{}'::jsonb) || '{"tool_failure": true}'::jsonb
		 WHERE id = ANY($1)`,
		ids,
	)
	return err
}

// FeedbackStats aggregates feedback ratings per organization since the given
// time. Events with a non-numeric rating payload are ignored by the filter.
func (r *LearningRepository) FeedbackStats(ctx context.Context, since time.Time) ([]*service.OrgFeedbackStats, error) {
	rows, err := r.db.Query(ctx,
		`SELECT org_id, COUNT(*), AVG((payload->>'rating')::numeric)
		 FROM learning_events
		 WHERE event_type = $1
		   AND occurred_at >= $2
		   AND payload->>'rating' ~ '^[0-9]+$'
		 GROUP BY org_id`,
		domain.EventTypeFeedback, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*service.OrgFeedbackStats
	for rows.Next() {
		var s service.OrgFeedbackStats
		if err := rows.Scan(&s.OrgID, &s.SampleSize, &s.MeanRating); err != nil {
			return nil, err
		}
		stats = append(stats, &s)
	}
	return stats, rows.Err()
}

// HasPendingInsight reports whether a pending insight of the given type
// already exists for the organization. Keeps the aggregation idempotent
// within a window.
func (r *LearningRepository) HasPendingInsight(ctx context.Context, orgID, insightType string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM learning_insights
		    WHERE org_id = $1 AND type = $2 AND status = $3
		 )`,
		orgID, insightType, domain.InsightStatusPending,
	).Scan(&exists)
	return exists, err
}

func (r *LearningRepository) InsertInsight(ctx context.Context, ins *domain.LearningInsight) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO learning_insights
			(id, org_id, type, title, description, confidence, impact, recommendations, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ins.ID, ins.OrgID, ins.Type, ins.Title, ins.Description, ins.Confidence,
		ins.Impact, ins.Recommendations, ins.Status, ins.CreatedAt,
	)
	return err
}
