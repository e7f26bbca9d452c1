package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/internal/cache"
	"github.com/kiranshivaraju/researchmate/internal/metrics"
	"github.com/kiranshivaraju/researchmate/internal/pipeline"
	"github.com/kiranshivaraju/researchmate/internal/store"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// Runner executes one job's pipeline and records every status transition.
type Runner struct {
	store    store.Store
	composer *pipeline.Composer
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
}

// NewRunner creates a Runner. ca and m may be nil.
func NewRunner(st store.Store, composer *pipeline.Composer, ca cache.Cache, cacheTTL time.Duration, m *metrics.Metrics) *Runner {
	return &Runner{
		store:    st,
		composer: composer,
		cache:    ca,
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// Run moves job id to running, executes its pipeline, and records the outcome.
// It never panics and never returns an error: every failure ends up on the job.
// A job that is no longer pending is left untouched.
func (r *Runner) Run(ctx context.Context, id uuid.UUID) {
	job, ok := r.claim(ctx, id)
	if !ok {
		return
	}

	r.metrics.JobStarted()
	start := time.Now()
	status := models.JobStatusFailed

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in job runner", "error", rec, "job_id", id)
			r.fail(ctx, id, fmt.Sprintf("panic: %v", rec))
		}
		r.metrics.JobFinished(job.Pipeline, status, time.Since(start))
		slog.Info("job finished",
			"job_id", id,
			"pipeline", job.Pipeline,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	req := pipeline.Request{Input: job.Input, Pipeline: job.Pipeline}
	if job.Focus != nil {
		req.Focus = *job.Focus
	}

	result, err := r.composer.Run(ctx, req)
	if err != nil {
		slog.Warn("pipeline failed", "job_id", id, "pipeline", job.Pipeline, "error", err)
		r.fail(ctx, id, err.Error())
		return
	}

	if r.complete(ctx, id, result) {
		status = models.JobStatusCompleted
	}
}

func (r *Runner) claim(ctx context.Context, id uuid.UUID) (*models.Job, bool) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		slog.Error("loading job", "job_id", id, "error", err)
		return nil, false
	}
	if job.Status != models.JobStatusPending {
		slog.Warn("skipping job that is not pending", "job_id", id, "status", job.Status)
		return nil, false
	}

	if err := r.store.SetJobStatus(ctx, id, models.JobStatusRunning); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			slog.Warn("job claimed elsewhere", "job_id", id, "error", err)
		} else {
			slog.Error("marking job running", "job_id", id, "error", err)
		}
		return nil, false
	}

	slog.Info("job running", "job_id", id, "pipeline", job.Pipeline)
	return job, true
}

func (r *Runner) complete(ctx context.Context, id uuid.UUID, result string) bool {
	if err := r.store.CompleteJob(ctx, id, result); err != nil {
		slog.Error("recording job result", "job_id", id, "error", err)
		// A result that cannot be stored still has to leave the job terminal.
		r.fail(ctx, id, fmt.Sprintf("storing result: %v", err))
		return false
	}
	r.cacheTerminal(ctx, id)
	return true
}

func (r *Runner) fail(ctx context.Context, id uuid.UUID, msg string) {
	if err := r.store.FailJob(ctx, id, msg); err != nil {
		slog.Error("recording job failure", "job_id", id, "error", err)
		return
	}
	r.cacheTerminal(ctx, id)
}

func (r *Runner) cacheTerminal(ctx context.Context, id uuid.UUID) {
	if r.cache == nil {
		return
	}
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		slog.Warn("reloading job for cache", "job_id", id, "error", err)
		return
	}
	if err := cache.SetJob(ctx, r.cache, job, r.cacheTTL); err != nil {
		slog.Warn("caching job", "job_id", id, "error", err)
	}
}
