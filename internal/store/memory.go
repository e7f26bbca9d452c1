package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// MemoryStore keeps jobs in process memory for the lifetime of the server.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*models.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) CreateJob(_ context.Context, params CreateJobParams) (*models.Job, error) {
	now := s.now()
	job := &models.Job{
		ID:        uuid.New(),
		Input:     params.Input,
		Pipeline:  params.Pipeline,
		Focus:     cloneString(params.Focus),
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return cloneJob(job), nil
}

func (s *MemoryStore) SetJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status != models.JobStatusRunning {
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		return plainStatusError(id, status)
	}
	return s.transition(id, status, func(j *models.Job, now time.Time) {
		j.StartedAt = &now
	})
}

func (s *MemoryStore) CompleteJob(_ context.Context, id uuid.UUID, result string) error {
	return s.transition(id, models.JobStatusCompleted, func(j *models.Job, now time.Time) {
		j.Result = &result
		j.CompletedAt = &now
	})
}

func (s *MemoryStore) FailJob(_ context.Context, id uuid.UUID, errMsg string) error {
	return s.transition(id, models.JobStatusFailed, func(j *models.Job, now time.Time) {
		j.ErrorMessage = &errMsg
		j.CompletedAt = &now
	})
}

func (s *MemoryStore) transition(id uuid.UUID, to string, apply func(*models.Job, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(validTransitions[j.Status], to) {
		return transitionError(id, j.Status, to)
	}

	now := s.now()
	j.Status = to
	j.UpdatedAt = now
	apply(j, now)
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *MemoryStore) ListJobIDsByStatus(_ context.Context, status string) ([]uuid.UUID, error) {
	s.mu.RLock()
	matched := make([]*models.Job, 0)
	for _, j := range s.jobs {
		if j.Status == status {
			matched = append(matched, j)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.Job) int { return a.CreatedAt.Compare(b.CreatedAt) })
	ids := make([]uuid.UUID, len(matched))
	for i, j := range matched {
		ids[i] = j.ID
	}
	return ids, nil
}

func cloneJob(j *models.Job) *models.Job {
	c := *j
	c.Focus = cloneString(j.Focus)
	c.Result = cloneString(j.Result)
	c.ErrorMessage = cloneString(j.ErrorMessage)
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ Store = (*MemoryStore)(nil)
