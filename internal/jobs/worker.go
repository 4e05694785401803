// Package jobs runs the background processors: embedding of ingested
// documents and the learning batch pipeline.
package jobs

import (
	"context"
	"log"
	"time"
)

// Task is one unit of periodic background work.
type Task func(ctx context.Context) error

// Worker invokes a task on a fixed interval until stopped. Each tick gets its
// own context derived from the worker's base context.
type Worker struct {
	name     string
	interval time.Duration
	task     Task
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(name string, interval time.Duration, task Task) *Worker {
	return &Worker{
		name:     name,
		interval: interval,
		task:     task,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker loop. The first run happens after one interval,
// not immediately, so startup is not serialized behind batch work.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("worker %s: started (interval %s)", w.name, w.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker %s: context cancelled, stopping", w.name)
			return
		case <-w.stop:
			log.Printf("worker %s: stopped", w.name)
			return
		case <-ticker.C:
			if err := w.task(ctx); err != nil {
				log.Printf("worker %s: run failed: %v", w.name, err)
			}
		}
	}
}

// Stop signals the worker to exit and waits for the current run to finish.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}
