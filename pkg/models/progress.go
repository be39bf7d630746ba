package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressUpdate is one message on a job's progress channel. Subscribers are
// best-effort; the hub re-emits the latest update as a heartbeat when no new
// update is available.
type ProgressUpdate struct {
	JobID     uuid.UUID  `json:"job_id"`
	Status    string     `json:"status"`
	Stage     string     `json:"stage"`
	Message   string     `json:"message"`
	Progress  int        `json:"progress"`
	Timestamp time.Time  `json:"timestamp"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}
