// Package dispatch hands submitted job ids to the goroutines that run them.
package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned when the bounded queue cannot accept another job.
	ErrQueueFull = errors.New("too many in-flight jobs")
	// ErrStopped is returned by Dispatch after Stop has been called.
	ErrStopped = errors.New("dispatcher stopped")
)

// Dispatcher schedules a job for execution outside the caller's goroutine.
// Dispatch must not block on the job itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, id uuid.UUID) error
}

// Handler runs one job. It owns all error handling for that job.
type Handler func(ctx context.Context, id uuid.UUID)

// Enqueuer is implemented by dispatchers that can wait for capacity. Recovery
// uses it for jobs that were already accepted and must not be rejected.
type Enqueuer interface {
	Enqueue(ctx context.Context, id uuid.UUID) error
}
