package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// SetJob caches a terminal job snapshot. Non-terminal jobs are ignored so a
// cached read can never report an older status than the store.
func SetJob(ctx context.Context, c Cache, job *models.Job, ttl time.Duration) error {
	if !job.IsTerminal() {
		return nil
	}
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return c.Set(ctx, JobKey(job.ID), b, ttl)
}

// GetJob returns the cached snapshot for id, if any.
func GetJob(ctx context.Context, c Cache, id uuid.UUID) (*models.Job, bool, error) {
	b, ok, err := c.Get(ctx, JobKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var job models.Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, false, fmt.Errorf("decode cached job: %w", err)
	}
	return &job, true, nil
}

// New returns a RedisCache when redisURL is set and a LocalCache otherwise.
func New(redisURL string, size int, ttl time.Duration) (Cache, error) {
	if redisURL == "" {
		return NewLocalCache(size, ttl), nil
	}
	return NewRedisCache(redisURL)
}
