// Package handler contains the HTTP handlers behind the API router. Each
// handler depends on a narrow interface so tests can swap in fakes without a
// database or a running pipeline.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/clipminer/internal/acquire"
	"github.com/kiranshivaraju/clipminer/internal/api/response"
	"github.com/kiranshivaraju/clipminer/internal/pipeline"
	"github.com/kiranshivaraju/clipminer/internal/store"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// Chunk window bounds accepted at submission. Out-of-range values are
// clamped rather than rejected.
const (
	minChunkSecs = 60
	maxChunkSecs = 1800
)

// JobStore is the slice of the data layer the job handlers use.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
	UpdateJobStage(ctx context.Context, id uuid.UUID, stage string, opts ...store.JobUpdateOption) error
}

// JobQueue hands accepted jobs to the pipeline workers.
type JobQueue interface {
	Enqueue(job *models.Job) error
}

// ProgressReader serves the latest cached progress snapshot for a job.
type ProgressReader interface {
	GetJobProgress(ctx context.Context, jobID uuid.UUID) (models.ProgressUpdate, bool, error)
}

// NewSubmitJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// The job is persisted before it is queued, so a queue rejection can mark
// the row failed instead of leaving it pending forever.
func NewSubmitJobHandler(st JobStore, queue JobQueue, defaultChunkSecs int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Source            string `json:"source"`
			ChunkDurationSecs int    `json:"chunk_duration_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		source := strings.TrimSpace(req.Source)
		if source == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "source is required", nil)
			return
		}

		secs := req.ChunkDurationSecs
		if secs == 0 {
			secs = defaultChunkSecs
		}
		if secs < minChunkSecs {
			secs = minChunkSecs
		}
		if secs > maxChunkSecs {
			secs = maxChunkSecs
		}

		now := time.Now().UTC()
		job := &models.Job{
			ID:            uuid.New(),
			Source:        source,
			SourceKind:    acquire.ClassifySource(source),
			Stage:         models.StagePending,
			Status:        models.JobStatusPending,
			ChunkDuration: secs,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := st.CreateJob(r.Context(), job); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job", nil)
			return
		}

		if err := queue.Enqueue(job); err != nil {
			st.UpdateJobStage(r.Context(), job.ID, models.StageFailed,
				store.WithErrorMessage(err.Error()))
			if errors.Is(err, pipeline.ErrQueueClosed) {
				response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
					"Server is shutting down", nil)
				return
			}
			w.Header().Set("Retry-After", "30")
			response.Error(w, http.StatusServiceUnavailable, "QUEUE_FULL",
				"Processing queue is full, retry later", nil)
			return
		}

		response.Accepted(w, job)
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// The persisted row is the source of truth; for live jobs the cached progress
// snapshot is overlaid when it is ahead of the row.
func NewGetJobHandler(st JobStore, progress ProgressReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID", "Job ID must be a valid UUID", nil)
			return
		}

		job, err := st.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No job with that ID", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		if !models.TerminalStage(job.Stage) {
			update, ok, err := progress.GetJobProgress(r.Context(), jobID)
			if err == nil && ok && update.Progress >= job.Progress {
				job.Stage = update.Stage
				job.Status = update.Status
				job.Progress = update.Progress
				if update.Result != nil {
					job.Result = update.Result
				}
				if update.Error != "" {
					job.ErrorMessage = &update.Error
				}
			}
		}

		response.JSON(w, job)
	}
}

var validStatuses = map[string]bool{
	models.JobStatusPending:   true,
	models.JobStatusRunning:   true,
	models.JobStatusCompleted: true,
	models.JobStatusFailed:    true,
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Filters are exact-match on status and stage; results are newest first.
func NewListJobsHandler(st JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		status := q.Get("status")
		if status != "" && !validStatuses[status] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of pending, running, completed, failed", nil)
			return
		}

		page := intQuery(q.Get("page"), 1)
		if page < 1 {
			page = 1
		}
		limit := intQuery(q.Get("limit"), 20)
		if limit < 1 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		jobs, total, err := st.ListJobs(r.Context(), store.JobFilter{
			Status: status,
			Stage:  q.Get("stage"),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

func intQuery(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
