package jobs

import (
	"context"
	"log"
)

// EventProcessor consumes recorded learning events in batches.
type EventProcessor interface {
	ProcessEvents(ctx context.Context) (int, error)
}

// InsightAggregator distills processed signals into insights.
type InsightAggregator interface {
	AggregateInsights(ctx context.Context) (int, error)
}

// NewLearningTask returns the periodic task that drains the event log.
func NewLearningTask(processor EventProcessor) Task {
	return func(ctx context.Context) error {
		n, err := processor.ProcessEvents(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Printf("learning: processed %d events", n)
		}
		return nil
	}
}

// NewInsightTask returns the periodic task that aggregates insights.
func NewInsightTask(aggregator InsightAggregator) Task {
	return func(ctx context.Context) error {
		n, err := aggregator.AggregateInsights(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Printf("learning: created %d insights", n)
		}
		return nil
	}
}
