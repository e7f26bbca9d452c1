// Package jobs accepts research jobs, hands them to a dispatcher and runs them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/internal/cache"
	"github.com/kiranshivaraju/researchmate/internal/dispatch"
	"github.com/kiranshivaraju/researchmate/internal/metrics"
	"github.com/kiranshivaraju/researchmate/internal/pipeline"
	"github.com/kiranshivaraju/researchmate/internal/store"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

const (
	MaxQueryLength = 2000
	MaxFocusLength = 500

	rejectedMessage    = "rejected: too many in-flight jobs"
	interruptedMessage = "interrupted by restart"
)

var ErrInvalidQuery = errors.New("invalid query")

// SubmitParams holds the caller-supplied fields of a new job.
type SubmitParams struct {
	Query    string
	Focus    string
	Pipeline string
}

// Service is the entry point the HTTP API uses for jobs.
type Service struct {
	store      store.Store
	dispatcher dispatch.Dispatcher
	composer   *pipeline.Composer
	cache      cache.Cache
	cacheTTL   time.Duration
	metrics    *metrics.Metrics
}

// Deps groups what a Service needs. Cache and Metrics may be nil.
type Deps struct {
	Store      store.Store
	Dispatcher dispatch.Dispatcher
	Composer   *pipeline.Composer
	Cache      cache.Cache
	CacheTTL   time.Duration
	Metrics    *metrics.Metrics
}

func NewService(d Deps) *Service {
	return &Service{
		store:      d.Store,
		dispatcher: d.Dispatcher,
		composer:   d.Composer,
		cache:      d.Cache,
		cacheTTL:   d.CacheTTL,
		metrics:    d.Metrics,
	}
}

// Submit validates params, records a pending job, and dispatches it. It returns as
// soon as the job is handed off. When the dispatcher refuses the job, the job is
// failed so no record is left pending forever.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.Job, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, fmt.Errorf("%w: query must be at most %d characters", ErrInvalidQuery, MaxQueryLength)
	}

	var focus *string
	if f := strings.TrimSpace(params.Focus); f != "" {
		if utf8.RuneCountInString(f) > MaxFocusLength {
			return nil, fmt.Errorf("%w: focus must be at most %d characters", ErrInvalidQuery, MaxFocusLength)
		}
		focus = &f
	}

	name := strings.TrimSpace(params.Pipeline)
	if name == "" {
		name = pipeline.DefaultPipeline
	}
	if !s.composer.Has(name) {
		return nil, fmt.Errorf("%w: %q", pipeline.ErrUnknownPipeline, name)
	}

	job, err := s.store.CreateJob(ctx, store.CreateJobParams{Input: query, Pipeline: name, Focus: focus})
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		s.reject(ctx, job.ID, err)
		return nil, fmt.Errorf("dispatching job %s: %w", job.ID, err)
	}

	s.metrics.JobSubmitted(name)
	slog.Info("job submitted", "job_id", job.ID, "pipeline", name)
	return job, nil
}

func (s *Service) reject(ctx context.Context, id uuid.UUID, cause error) {
	msg := rejectedMessage
	if errors.Is(cause, dispatch.ErrQueueFull) {
		s.metrics.JobRejected()
	} else {
		msg = fmt.Sprintf("dispatch failed: %v", cause)
	}

	slog.Warn("job not dispatched", "job_id", id, "error", cause)
	if err := s.store.FailJob(ctx, id, msg); err != nil {
		slog.Error("failing undispatched job", "job_id", id, "error", err)
	}
}

// Get returns the current snapshot of job id. Terminal snapshots are served
// from the cache when present.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if s.cache != nil {
		job, ok, err := cache.GetJob(ctx, s.cache, id)
		if err != nil {
			slog.Warn("reading job cache", "job_id", id, "error", err)
		} else if ok {
			return job, nil
		}
	}

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && job.IsTerminal() {
		if err := cache.SetJob(ctx, s.cache, job, s.cacheTTL); err != nil {
			slog.Warn("caching job", "job_id", id, "error", err)
		}
	}
	return job, nil
}

// FailInterrupted fails jobs a previous process left running. It must run
// before any worker or consumer starts, or a job claimed by this process could
// be failed mid-run.
func (s *Service) FailInterrupted(ctx context.Context) (int, error) {
	running, err := s.store.ListJobIDsByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("listing running jobs: %w", err)
	}

	n := 0
	for _, id := range running {
		if err := s.store.FailJob(ctx, id, interruptedMessage); err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				continue
			}
			return n, fmt.Errorf("failing interrupted job %s: %w", id, err)
		}
		n++
	}
	if n > 0 {
		slog.Info("failed interrupted jobs", "count", n)
	}
	return n, nil
}

// Requeue hands every pending job back to the dispatcher. Workers must already
// be running. When the dispatcher can wait for capacity, Requeue waits rather
// than rejecting; on error the remaining jobs stay pending for the next start.
func (s *Service) Requeue(ctx context.Context) (int, error) {
	pending, err := s.store.ListJobIDsByStatus(ctx, models.JobStatusPending)
	if err != nil {
		return 0, fmt.Errorf("listing pending jobs: %w", err)
	}

	enqueue := s.dispatcher.Dispatch
	if e, ok := s.dispatcher.(dispatch.Enqueuer); ok {
		enqueue = e.Enqueue
	}

	n := 0
	for _, id := range pending {
		if err := enqueue(ctx, id); err != nil {
			return n, fmt.Errorf("requeueing job %s (%d of %d left pending): %w", id, len(pending)-n, len(pending), err)
		}
		n++
	}
	if n > 0 {
		slog.Info("requeued pending jobs", "count", n)
	}
	return n, nil
}
