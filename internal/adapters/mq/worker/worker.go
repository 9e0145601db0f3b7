// Package worker runs the bounded pool of ingestion workers that drain
// the file-event queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/pkg/logger"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/pkg/metrics"
)

const workerShutdownTimeout = 30 * time.Second

// Event is what workers read off the queue.
type Event = model.FileEvent

// Ingester runs the full pipeline for one file event: read, fingerprint,
// decode, classify, derive, upsert. It returns the tagged outcome; a
// Skip is not an error and a Fail must never abort the worker loop.
type Ingester interface {
	Ingest(ctx context.Context, e Event) model.Outcome
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker drains events from the queue and hands them to the ingester.
type Worker struct {
	queue    Queue
	ingester Ingester
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker.
func New(queue Queue, ingester Ingester, opts ...Option) *Worker {
	w := &Worker{
		queue:    queue,
		ingester: ingester,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes events until ctx is canceled, the worker is shut down,
// or the queue closes. An event in flight always completes; one bad
// file never stops ingestion of the next.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			// Orderly stop: the queue was closed first, so finish the
			// buffered backlog before exiting.
			w.drain(ctx, events)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

func (w *Worker) drain(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

// Shutdown stops the worker, waiting for the event in flight and any
// backlog left in an already-closed queue.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}

func (w *Worker) process(ctx context.Context, e Event) {
	start := time.Now()
	outcome := w.ingester.Ingest(ctx, e)
	metrics.RecordIngestLatency(time.Since(start).Seconds())
	metrics.RecordIngestOutcome(outcome.Kind.String())

	switch outcome.Kind {
	case model.OutcomeAccepted:
		w.logger.Info(ctx, "activity accepted", logger.String("path", e.Path))
	case model.OutcomeSkipped:
		// A clean skip is a designed no-op, logged below error level.
		w.logger.Debug(ctx, "file skipped",
			logger.String("path", e.Path),
			logger.String("reason", outcome.Reason),
		)
	case model.OutcomeFailed:
		w.logger.Error(ctx, "ingestion failed",
			logger.String("path", e.Path),
			logger.Error(outcome.Err),
		)
	}
}

// Pool manages a fixed set of workers.
type Pool struct {
	workers []*Worker
	logger  logger.Logger
}

// NewPool creates and wires workerCount workers; non-positive counts
// fall back to the CPU count.
func NewPool(workerCount int, queue Queue, ingester Ingester) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = New(queue, ingester, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown stops all workers, letting in-flight ingestions finish so
// no upsert is aborted midway.
func (p *Pool) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker did not stop in time", logger.Int("worker_id", i))
		}
	}
	return nil
}
