package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// jobRecord is the gorm row for a job. IDs are stored as text.
type jobRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	Input        string `gorm:"not null"`
	Pipeline     string `gorm:"not null"`
	Focus        *string
	Status       string `gorm:"not null;index:idx_jobs_status_created,priority:1"`
	Result       *string
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time `gorm:"index:idx_jobs_status_created,priority:2"`
	UpdatedAt    time.Time
}

func (jobRecord) TableName() string { return "jobs" }

func (r *jobRecord) toModel() (*models.Job, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", r.ID, err)
	}
	return &models.Job{
		ID:           id,
		Input:        r.Input,
		Pipeline:     r.Pipeline,
		Focus:        r.Focus,
		Status:       r.Status,
		Result:       r.Result,
		ErrorMessage: r.ErrorMessage,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

// SQLiteStore implements Store on a single SQLite table through gorm.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates the jobs table.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// SQLite allows a single writer; one connection also keeps ":memory:" databases shared.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := NewSQLiteStore(db)
	if err := s.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Migrate creates the jobs table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&jobRecord{}); err != nil {
		return fmt.Errorf("migrate jobs table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, params CreateJobParams) (*models.Job, error) {
	now := time.Now().UTC()
	rec := &jobRecord{
		ID:        uuid.New().String(),
		Input:     params.Input,
		Pipeline:  params.Pipeline,
		Focus:     params.Focus,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return rec.toModel()
}

func (s *SQLiteStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return rec.toModel()
}

func (s *SQLiteStore) SetJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status != models.JobStatusRunning {
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		return plainStatusError(id, status)
	}
	now := time.Now().UTC()
	return s.transition(ctx, id, status, map[string]any{
		"started_at": now,
		"updated_at": now,
	})
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id uuid.UUID, result string) error {
	now := time.Now().UTC()
	return s.transition(ctx, id, models.JobStatusCompleted, map[string]any{
		"result":       result,
		"completed_at": now,
		"updated_at":   now,
	})
}

func (s *SQLiteStore) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	now := time.Now().UTC()
	return s.transition(ctx, id, models.JobStatusFailed, map[string]any{
		"error_message": errMsg,
		"completed_at":  now,
		"updated_at":    now,
	})
}

func (s *SQLiteStore) transition(ctx context.Context, id uuid.UUID, to string, updates map[string]any) error {
	updates["status"] = to

	result := s.db.WithContext(ctx).
		Model(&jobRecord{}).
		Where("id = ? AND status IN ?", id.String(), sourcesFor(to)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update job status: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	current, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return transitionError(id, current.Status, to)
}

func (s *SQLiteStore) ListJobIDsByStatus(ctx context.Context, status string) ([]uuid.UUID, error) {
	var raw []string
	err := s.db.WithContext(ctx).
		Model(&jobRecord{}).
		Where("status = ?", status).
		Order("created_at ASC").
		Pluck("id", &raw).Error
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parse job id %q: %w", r, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var _ Store = (*SQLiteStore)(nil)
