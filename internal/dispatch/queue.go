package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Queue is a bounded in-process work queue drained by a fixed pool of workers.
type Queue struct {
	jobs    chan uuid.UUID
	workers int
	handler Handler

	mu       sync.RWMutex
	stopped  bool
	started  bool
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewQueue creates a queue holding up to depth waiting jobs, run by workers goroutines.
func NewQueue(workers, depth int, handler Handler) *Queue {
	if workers < 1 {
		workers = 1
	}
	if depth < 0 {
		depth = 0
	}
	return &Queue{
		jobs:    make(chan uuid.UUID, depth),
		workers: workers,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start launches the workers. Jobs run with a context that is not cancelled when
// ctx is, so a shutdown never interrupts a pipeline midway.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	runCtx := context.WithoutCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for id := range q.jobs {
				q.handler(runCtx, id)
			}
		}()
	}
	slog.Info("job queue started", "workers", q.workers, "depth", cap(q.jobs))
}

// Dispatch enqueues id without blocking. It returns ErrQueueFull when the buffer is full.
func (q *Queue) Dispatch(_ context.Context, id uuid.UUID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrStopped
	}

	select {
	case q.jobs <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Enqueue waits until the buffer has room for id, ctx is done, or the queue is
// stopped. Workers must be running or Enqueue blocks once the buffer fills.
func (q *Queue) Enqueue(ctx context.Context, id uuid.UUID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrStopped
	}

	select {
	case q.jobs <- id:
		return nil
	case <-q.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of jobs waiting for a worker.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Stop refuses new jobs, lets workers drain what is queued, and waits for them
// until ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ Dispatcher = (*Queue)(nil)
	_ Enqueuer   = (*Queue)(nil)
)
