package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface for jobs. Every mutation is atomic per job id
// and terminal statuses are never left once reached.
type Store interface {
	Ping(ctx context.Context) error

	// CreateJob allocates a fresh id and records the job as pending.
	CreateJob(ctx context.Context, params CreateJobParams) (*models.Job, error)
	// SetJobStatus performs a plain status change. Only pending -> running is legal.
	SetJobStatus(ctx context.Context, id uuid.UUID, status string) error
	// CompleteJob moves a running job to completed and stores its result.
	CompleteJob(ctx context.Context, id uuid.UUID, result string) error
	// FailJob moves a pending or running job to failed and stores the error text.
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobIDsByStatus(ctx context.Context, status string) ([]uuid.UUID, error)
}

type CreateJobParams struct {
	Input    string
	Pipeline string
	Focus    *string
}

var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

// sourcesFor lists the statuses from which a job may move to status.
func sourcesFor(status string) []string {
	var from []string
	for src, targets := range validTransitions {
		if slices.Contains(targets, status) {
			from = append(from, src)
		}
	}
	slices.Sort(from)
	return from
}

func transitionError(id uuid.UUID, from, to string) error {
	return fmt.Errorf("%w: job %s: %s -> %s", ErrInvalidTransition, id, from, to)
}

// plainStatusError rejects SetJobStatus targets that need CompleteJob or FailJob.
func plainStatusError(id uuid.UUID, status string) error {
	return fmt.Errorf("%w: job %s: %q cannot be set directly", ErrInvalidTransition, id, status)
}
