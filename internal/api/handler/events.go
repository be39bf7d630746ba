package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/clipminer/internal/api/response"
	"github.com/kiranshivaraju/clipminer/internal/store"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// EventSource is the live progress feed the events handler attaches to.
type EventSource interface {
	Subscribe(jobID uuid.UUID) (<-chan models.ProgressUpdate, func())
}

// NewJobEventsHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}/events.
// It streams progress updates as server-sent events until the job reaches a
// terminal stage or the client disconnects. The hub re-emits the latest update
// between pipeline steps, which doubles as a keep-alive for idle streams.
func NewJobEventsHandler(st JobStore, events EventSource) http.HandlerFunc {
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

		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED",
				"Response writer does not support streaming", nil)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch, cancel := events.Subscribe(jobID)
		defer cancel()

		// Lead with the persisted state so every stream starts with a
		// baseline event. A job that finished between the lookup and the
		// subscription is covered either by this write or by the hub's
		// terminal replay.
		writeEvent(w, snapshotUpdate(job))
		flusher.Flush()
		if models.TerminalStage(job.Stage) {
			return
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case update, open := <-ch:
				if !open {
					return
				}
				writeEvent(w, update)
				flusher.Flush()
			}
		}
	}
}

// snapshotUpdate rebuilds a progress message from a persisted job row.
func snapshotUpdate(job *models.Job) models.ProgressUpdate {
	u := models.ProgressUpdate{
		JobID:     job.ID,
		Status:    job.Status,
		Stage:     job.Stage,
		Progress:  job.Progress,
		Timestamp: job.UpdatedAt,
		Result:    job.Result,
	}
	if job.ErrorMessage != nil {
		u.Error = *job.ErrorMessage
	}
	return u
}

func writeEvent(w http.ResponseWriter, update models.ProgressUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
