package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/internal/store"
	"github.com/kiranshivaraju/researchmate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// runContract exercises the behavior every Store backing must share.
func runContract(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("CreateJob starts pending", func(t *testing.T) {
		s := newStore(t)
		job, err := s.CreateJob(ctx, store.CreateJobParams{Input: "AAPL outlook", Pipeline: "market", Focus: strPtr("risks")})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Nil(t, job.Result)
		assert.Nil(t, job.ErrorMessage)

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "AAPL outlook", got.Input)
		assert.Equal(t, "market", got.Pipeline)
		require.NotNil(t, got.Focus)
		assert.Equal(t, "risks", *got.Focus)
		assert.Equal(t, models.JobStatusPending, got.Status)
	})

	t.Run("CreateJob ids are unique", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateJob(ctx, store.CreateJobParams{Input: "same", Pipeline: "market"})
		require.NoError(t, err)
		b, err := s.CreateJob(ctx, store.CreateJobParams{Input: "same", Pipeline: "market"})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("full lifecycle to completed", func(t *testing.T) {
		s := newStore(t)
		job, err := s.CreateJob(ctx, store.CreateJobParams{Input: "q", Pipeline: "market"})
		require.NoError(t, err)

		require.NoError(t, s.SetJobStatus(ctx, job.ID, models.JobStatusRunning))
		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusRunning, got.Status)
		assert.NotNil(t, got.StartedAt)

		require.NoError(t, s.CompleteJob(ctx, job.ID, "the report"))
		got, err = s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
		require.NotNil(t, got.Result)
		assert.Equal(t, "the report", *got.Result)
		assert.Nil(t, got.ErrorMessage)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("running to failed", func(t *testing.T) {
		s := newStore(t)
		job, err := s.CreateJob(ctx, store.CreateJobParams{Input: "q", Pipeline: "market"})
		require.NoError(t, err)
		require.NoError(t, s.SetJobStatus(ctx, job.ID, models.JobStatusRunning))

		require.NoError(t, s.FailJob(ctx, job.ID, "text service unavailable"))
		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "text service unavailable", *got.ErrorMessage)
		assert.Nil(t, got.Result)
	})

	t.Run("pending can fail before running", func(t *testing.T) {
		s := newStore(t)
		job, err := s.CreateJob(ctx, store.CreateJobParams{Input: "q", Pipeline: "market"})
		require.NoError(t, err)
		require.NoError(t, s.FailJob(ctx, job.ID, "rejected"))
	})

	t.Run("pending cannot complete", func(t *testing.T) {
		s := newStore(t)
		job, err := s.CreateJob(ctx, store.CreateJobParams{Input: "q", Pipeline: "market"})
		require.NoError(t, err)
		assert.ErrorIs(t, s.CompleteJob(ctx, job.ID, "early"), store.ErrInvalidTransition)
	})

	t.Run("terminal statuses are absorbing", func(t *testing.T) {
		s := newStore(t)
		job, err := s.CreateJob(ctx, store.CreateJobParams{Input: "q", Pipeline: "market"})
		require.NoError(t, err)
		require.NoError(t, s.SetJobStatus(ctx, job.ID, models.JobStatusRunning))
		require.NoError(t, s.CompleteJob(ctx, job.ID, "done"))

		assert.ErrorIs(t, s.SetJobStatus(ctx, job.ID, models.JobStatusRunning), store.ErrInvalidTransition)
		assert.ErrorIs(t, s.FailJob(ctx, job.ID, "late"), store.ErrInvalidTransition)
		assert.ErrorIs(t, s.CompleteJob(ctx, job.ID, "again"), store.ErrInvalidTransition)

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
		assert.Equal(t, "done", *got.Result)
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("SetJobStatus rejects terminal targets", func(t *testing.T) {
		s := newStore(t)
		job, err := s.CreateJob(ctx, store.CreateJobParams{Input: "q", Pipeline: "market"})
		require.NoError(t, err)
		assert.ErrorIs(t, s.SetJobStatus(ctx, job.ID, models.JobStatusCompleted), store.ErrInvalidTransition)
		assert.ErrorIs(t, s.SetJobStatus(ctx, job.ID, models.JobStatusPending), store.ErrInvalidTransition)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		s := newStore(t)
		id := uuid.New()

		_, err := s.GetJob(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.SetJobStatus(ctx, id, models.JobStatusRunning), store.ErrNotFound)
		assert.ErrorIs(t, s.SetJobStatus(ctx, id, models.JobStatusCompleted), store.ErrNotFound)
		assert.ErrorIs(t, s.CompleteJob(ctx, id, "x"), store.ErrNotFound)
		assert.ErrorIs(t, s.FailJob(ctx, id, "x"), store.ErrNotFound)
	})

	t.Run("ListJobIDsByStatus", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateJob(ctx, store.CreateJobParams{Input: "a", Pipeline: "market"})
		require.NoError(t, err)
		b, err := s.CreateJob(ctx, store.CreateJobParams{Input: "b", Pipeline: "market"})
		require.NoError(t, err)
		require.NoError(t, s.SetJobStatus(ctx, b.ID, models.JobStatusRunning))

		pending, err := s.ListJobIDsByStatus(ctx, models.JobStatusPending)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a.ID}, pending)

		running, err := s.ListJobIDsByStatus(ctx, models.JobStatusRunning)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{b.ID}, running)

		completed, err := s.ListJobIDsByStatus(ctx, models.JobStatusCompleted)
		require.NoError(t, err)
		assert.Empty(t, completed)
	})

	t.Run("concurrent jobs stay independent", func(t *testing.T) {
		s := newStore(t)
		const n = 10

		ids := make([]uuid.UUID, n)
		for i := range ids {
			job, err := s.CreateJob(ctx, store.CreateJobParams{Input: fmt.Sprintf("q%d", i), Pipeline: "market"})
			require.NoError(t, err)
			ids[i] = job.ID
		}

		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.SetJobStatus(ctx, id, models.JobStatusRunning))
				assert.NoError(t, s.CompleteJob(ctx, id, fmt.Sprintf("result for q%d", i)))
			}()
		}
		wg.Wait()

		for i, id := range ids {
			got, err := s.GetJob(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("q%d", i), got.Input)
			assert.Equal(t, fmt.Sprintf("result for q%d", i), *got.Result)
		}
	})
}
