// Package worker defines the workers that drain the click queue into the
// store and refresh the derived trust scores.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/vouch/internal/domain/model"
	"github.com/okian/vouch/pkg/logger"
	"github.com/okian/vouch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = model.Click

// Recorder persists one click and refreshes whatever derives from it.
type Recorder interface {
	RecordClick(ctx context.Context, c Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes click events using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// ClickWorker implements Worker for recording click events.
type ClickWorker struct {
	queue    Queue
	recorder Recorder
	name     string

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// NewClickWorker creates a new worker with configuration options.
func NewClickWorker(queue Queue, recorder Recorder, opts ...Option) *ClickWorker {
	w := &ClickWorker{
		queue:    queue,
		recorder: recorder,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *ClickWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, event); err != nil {
				metrics.RecordWorkerError()
				metrics.RecordErrorByComponent("worker", "record_click")
				w.log.Error(ctx, "failed to record click",
					logger.String("source", event.Source),
					logger.String("target", event.Target),
					logger.Error(err))
			}
		}
	}
}

func (w *ClickWorker) process(ctx context.Context, event Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if err := w.recorder.RecordClick(ctx, event); err != nil {
		return fmt.Errorf("record click %s->%s: %w", event.Source, event.Target, err)
	}
	metrics.RecordClickRecorded()
	return nil
}

// Shutdown gracefully stops the worker.
func (w *ClickWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(workerShutdownTimeout):
		return fmt.Errorf("worker %s shutdown timed out", w.name)
	}
}

// WorkerPool runs a fixed set of click workers over one queue.
type WorkerPool struct {
	workers []*ClickWorker
	wg      sync.WaitGroup
}

// NewWorkerPool creates count workers sharing the queue and recorder.
func NewWorkerPool(count int, queue Queue, recorder Recorder) *WorkerPool {
	if count <= 0 {
		count = defaultWorkerCount
	}
	pool := &WorkerPool{
		workers: make([]*ClickWorker, 0, count),
	}
	for i := 0; i < count; i++ {
		pool.workers = append(pool.workers, NewClickWorker(queue, recorder,
			WithName("worker-"+strconv.Itoa(i))))
	}
	return pool
}

// Start launches every worker.
func (p *WorkerPool) Start(ctx context.Context) {
	metrics.UpdateWorkerCount(len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *ClickWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown stops every worker and waits for them to drain.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for _, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		if firstErr == nil {
			firstErr = shutdownCtx.Err()
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
