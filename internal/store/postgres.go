package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const jobColumns = `id, input, pipeline, focus, status, result, error_message, started_at, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.Input, &j.Pipeline, &j.Focus, &j.Status, &j.Result, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, params CreateJobParams) (*models.Job, error) {
	now := time.Now().UTC()
	job, err := scanJob(s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, input, pipeline, focus, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING `+jobColumns,
		uuid.New(), params.Input, params.Pipeline, params.Focus, models.JobStatusPending, now))
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) SetJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status != models.JobStatusRunning {
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		return plainStatusError(id, status)
	}
	return s.transition(ctx, id, status,
		`UPDATE jobs SET status = $2, started_at = $3, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)`)
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, result string) error {
	return s.transition(ctx, id, models.JobStatusCompleted,
		`UPDATE jobs SET status = $2, result = $5, completed_at = $3, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)`, result)
}

func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.transition(ctx, id, models.JobStatusFailed,
		`UPDATE jobs SET status = $2, error_message = $5, completed_at = $3, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)`, errMsg)
}

// transition runs a conditional UPDATE guarded by the legal source statuses for to.
// When no row changes it reports whether the job is missing or in the wrong state.
func (s *PostgresStore) transition(ctx context.Context, id uuid.UUID, to, query string, extra ...any) error {
	args := append([]any{id, to, time.Now().UTC(), sourcesFor(to)}, extra...)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	return transitionError(id, current, to)
}

func (s *PostgresStore) ListJobIDsByStatus(ctx context.Context, status string) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM jobs WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
