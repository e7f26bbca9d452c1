package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/researchmate/internal/api/response"
	"github.com/kiranshivaraju/researchmate/internal/dispatch"
	"github.com/kiranshivaraju/researchmate/internal/jobs"
	"github.com/kiranshivaraju/researchmate/internal/pipeline"
	"github.com/kiranshivaraju/researchmate/internal/store"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

const maxBodyBytes = 64 << 10

// JobService defines what the job handlers depend on.
type JobService interface {
	Submit(ctx context.Context, params jobs.SubmitParams) (*models.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// research_focus is accepted as an alias for focus; focus wins when both are set.
type submitRequest struct {
	Query         string `json:"query"`
	Focus         string `json:"focus"`
	ResearchFocus string `json:"research_focus"`
	Pipeline      string `json:"pipeline"`
}

func (r submitRequest) focus() string {
	if r.Focus != "" {
		return r.Focus
	}
	return r.ResearchFocus
}

type submitResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

type statusResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
	Error  *string   `json:"error,omitempty"`
}

// NewSubmitHandler returns an http.HandlerFunc for POST /jobs.
func NewSubmitHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeValidation, "Invalid JSON body", nil)
			return
		}

		job, err := svc.Submit(r.Context(), jobs.SubmitParams{
			Query:    req.Query,
			Focus:    req.focus(),
			Pipeline: req.Pipeline,
		})
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrInvalidQuery), errors.Is(err, pipeline.ErrUnknownPipeline):
				response.Error(w, http.StatusBadRequest, response.CodeValidation, err.Error(), nil)
			case errors.Is(err, dispatch.ErrQueueFull):
				w.Header().Set("Retry-After", "5")
				response.Error(w, http.StatusServiceUnavailable, response.CodeQueueFull,
					"Too many jobs in flight, retry later", nil)
			default:
				slog.Error("submitting job", "error", err)
				response.Error(w, http.StatusInternalServerError, response.CodeInternal,
					"An unexpected error occurred", nil)
			}
			return
		}

		w.Header().Set("Location", "/jobs/"+job.ID.String()+"/status")
		response.Accepted(w, submitResponse{JobID: job.ID, Status: job.Status})
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /jobs/{jobID}/status.
func NewStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadJob(w, r, svc)
		if !ok {
			return
		}
		response.JSON(w, statusResponse{JobID: job.ID, Status: job.Status, Error: job.ErrorMessage})
	}
}

// NewResultHandler returns an http.HandlerFunc for GET /jobs/{jobID}/result.
// Only completed jobs have a result; anything else is reported as not ready.
func NewResultHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadJob(w, r, svc)
		if !ok {
			return
		}

		if job.Status != models.JobStatusCompleted {
			details := map[string]string{"status": job.Status}
			if job.ErrorMessage != nil {
				details["error"] = *job.ErrorMessage
			}
			response.Error(w, http.StatusBadRequest, response.CodeNotReady,
				"Job has not completed", details)
			return
		}

		response.JSON(w, job)
	}
}

// loadJob resolves the jobID path parameter. Malformed ids cannot name a job,
// so they are reported as not found.
func loadJob(w http.ResponseWriter, r *http.Request, svc JobService) (*models.Job, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Job not found", nil)
		return nil, false
	}

	job, err := svc.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Job not found", nil)
		return nil, false
	}
	if err != nil {
		slog.Error("loading job", "job_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, response.CodeInternal,
			"An unexpected error occurred", nil)
		return nil, false
	}
	return job, true
}
