package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job tracks one research request. The API returns the job_id on POST /jobs;
// the client polls GET /jobs/{job_id}/status until status is completed or failed.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"job_id"`
	Input        string     `db:"input"         json:"input"`
	Pipeline     string     `db:"pipeline"      json:"pipeline"`
	Focus        *string    `db:"focus"         json:"focus,omitempty"`
	Status       string     `db:"status"        json:"status"`
	Result       *string    `db:"result"        json:"result,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// IsTerminal reports whether the job has reached completed or failed.
// Terminal jobs never change again.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
