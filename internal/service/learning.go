package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/telemetry"
)

// OrgFeedbackStats is the per-organization feedback aggregate used by the
// insight pipeline.
type OrgFeedbackStats struct {
	OrgID      string
	SampleSize int
	MeanRating float64
}

// LearningRepositoryInterface defines the repository interface for learning persistence
type LearningRepositoryInterface interface {
	InsertEvent(ctx context.Context, e *domain.LearningEvent) error
	GetUnprocessed(ctx context.Context, limit int) ([]*domain.LearningEvent, error)
	MarkProcessed(ctx context.Context, ids []string) error
	FlagToolFailures(ctx context.Context, ids []string) error
	FeedbackStats(ctx context.Context, since time.Time) ([]*OrgFeedbackStats, error)
	HasPendingInsight(ctx context.Context, orgID, insightType string) (bool, error)
	InsertInsight(ctx context.Context, ins *domain.LearningInsight) error
}

// LearningConfig tunes the batch pipeline thresholds.
type LearningConfig struct {
	BatchSize   int
	Lookback    time.Duration
	MinSample   int
	RatingFloor float64
}

// LearningService captures interaction events off the request path and
// distills them into insights in periodic batches.
type LearningService struct {
	repo    LearningRepositoryInterface
	uuidGen UUIDGenerator
	cfg     LearningConfig
}

func NewLearningService(repo LearningRepositoryInterface, cfg LearningConfig) *LearningService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.MinSample <= 0 {
		cfg.MinSample = 10
	}
	if cfg.RatingFloor <= 0 {
		cfg.RatingFloor = 3.5
	}
	return &LearningService{repo: repo, uuidGen: &DefaultUUIDGenerator{}, cfg: cfg}
}

// NewLearningServiceWithUUIDGen creates a LearningService with a custom UUID generator (for testing)
func NewLearningServiceWithUUIDGen(repo LearningRepositoryInterface, cfg LearningConfig, uuidGen UUIDGenerator) *LearningService {
	s := NewLearningService(repo, cfg)
	s.uuidGen = uuidGen
	return s
}

// Record persists an event asynchronously. The caller's request must never
// wait on or fail because of the learning pipeline, so the write runs on its
// own goroutine with a detached deadline and failures are only logged.
func (s *LearningService) Record(orgID, userID string, eventType domain.LearningEventType, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("learning: failed to encode %s payload: %v", eventType, err)
		return
	}

	event := &domain.LearningEvent{
		ID:        s.uuidGen.NewString(),
		OrgID:     orgID,
		UserID:    userID,
		EventType: eventType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
	if err := domain.ValidateEvent(event); err != nil {
		log.Printf("learning: dropping invalid %s event: %v", eventType, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.repo.InsertEvent(ctx, event); err != nil {
			log.Printf("learning: failed to record %s event: %v", eventType, err)
		}
	}()
}

// RecordFeedback validates and persists explicit user feedback synchronously,
// since the feedback endpoint's only job is this write.
func (s *LearningService) RecordFeedback(ctx context.Context, orgID, userID string, payload domain.FeedbackPayload) error {
	if payload.Rating < 1 || payload.Rating > 5 {
		return domain.NewDomainError(domain.ErrCodeValidation, "rating must be between 1 and 5")
	}
	if payload.SessionID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "feedback session_id is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &domain.LearningEvent{
		ID:        s.uuidGen.NewString(),
		OrgID:     orgID,
		UserID:    userID,
		EventType: domain.EventTypeFeedback,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
	if err := domain.ValidateEvent(event); err != nil {
		return err
	}
	return s.repo.InsertEvent(ctx, event)
}

// ProcessEvents consumes one bounded batch of unprocessed events. Failed tool
// executions get a durable metadata flag so they stay queryable after the
// batch; everything in the batch is then marked processed so the pipeline
// always makes progress.
func (s *LearningService) ProcessEvents(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "LearningService.ProcessEvents", telemetry.SpanAttributes{
		Operation: "process_events",
	})
	defer span.End()

	events, err := s.repo.GetUnprocessed(ctx, s.cfg.BatchSize)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(events))
	var failedIDs []string
	for _, e := range events {
		ids = append(ids, e.ID)

		if e.EventType != domain.EventTypeFunctionExecuted {
			continue
		}
		var p domain.FunctionExecutedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("learning: skipping malformed functionExecuted event %s: %v", e.ID, err)
			continue
		}
		if !p.Success {
			log.Printf("learning: tool %s failed for org %s: %s", p.Tool, e.OrgID, p.Error)
			failedIDs = append(failedIDs, e.ID)
		}
	}

	if len(failedIDs) > 0 {
		if err := s.repo.FlagToolFailures(ctx, failedIDs); err != nil {
			span.SetError(err)
			return 0, err
		}
	}

	if err := s.repo.MarkProcessed(ctx, ids); err != nil {
		span.SetError(err)
		return 0, err
	}
	return len(events), nil
}

// AggregateInsights turns sustained low feedback ratings into a pending
// insight per organization. Re-running within the window is idempotent: an
// organization with a pending insight of the same type is skipped.
func (s *LearningService) AggregateInsights(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "LearningService.AggregateInsights", telemetry.SpanAttributes{
		Operation: "aggregate_insights",
	})
	defer span.End()

	since := time.Now().UTC().Add(-s.cfg.Lookback)
	stats, err := s.repo.FeedbackStats(ctx, since)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	created := 0
	for _, st := range stats {
		if st.SampleSize < s.cfg.MinSample || st.MeanRating >= s.cfg.RatingFloor {
			continue
		}

		exists, err := s.repo.HasPendingInsight(ctx, st.OrgID, domain.InsightTypePerformanceIssue)
		if err != nil {
			span.SetError(err)
			return created, err
		}
		if exists {
			continue
		}

		insight := &domain.LearningInsight{
			ID:    s.uuidGen.NewString(),
			OrgID: st.OrgID,
			Type:  domain.InsightTypePerformanceIssue,
			Title: "Assistant answers are rated poorly",
			Description: fmt.Sprintf(
				"Average feedback rating is %.2f across %d responses in the last %s. Review the knowledge base coverage for common questions.",
				st.MeanRating, st.SampleSize, s.cfg.Lookback),
			Confidence: confidenceFromSample(st.SampleSize),
			Impact:     domain.InsightImpactHigh,
			Recommendations: []string{
				"Review recent low-rated conversations for missing knowledge",
				"Ingest documents covering the most frequent unanswered topics",
				"Check whether retrieved chunks match the questions asked",
			},
			Status:    domain.InsightStatusPending,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.repo.InsertInsight(ctx, insight); err != nil {
			span.SetError(err)
			return created, err
		}
		created++
	}
	return created, nil
}

// confidenceFromSample grows confidence with sample size, capped at 0.95.
func confidenceFromSample(n int) float32 {
	c := 0.5 + float32(n)/100
	if c > 0.95 {
		c = 0.95
	}
	return c
}
