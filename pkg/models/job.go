// Package models contains shared data models used across the ClipMiner codebase.
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

// Pipeline stages, in execution order. A job moves strictly forward through
// these; any non-terminal stage may transition to StageFailed.
const (
	StagePending            = "pending"
	StageAcquiring          = "acquiring"
	StageExtractingAudio    = "extracting_audio"
	StageChunking           = "chunking"
	StageTranscribing       = "transcribing"
	StageAnalyzing          = "analyzing"
	StageExtractingSegments = "extracting_segments"
	StagePublishing         = "publishing"
	StageCompleted          = "completed"
	StageFailed             = "failed"
)

// Source kinds accepted at job submission.
const (
	SourceKindPlatform = "platform" // video-platform page URL, resolved via download strategies
	SourceKindURL      = "url"      // direct media URL
	SourceKindObject   = "object"   // object-store reference (s3://bucket/key)
	SourceKindFile     = "file"     // local path, e.g. a prior upload
)

// Job tracks one source through the clip pipeline. The API returns a job id on
// POST /api/v1/jobs; the client polls GET /api/v1/jobs/{job_id} or subscribes
// to the progress stream until status is completed or failed.
type Job struct {
	ID            uuid.UUID  `db:"id"                  json:"id"`
	Source        string     `db:"source"              json:"source"`
	SourceKind    string     `db:"source_kind"         json:"source_kind"`
	Stage         string     `db:"stage"               json:"stage"`
	Status        string     `db:"status"              json:"status"`
	Progress      int        `db:"progress"            json:"progress"`
	ChunkDuration int        `db:"chunk_duration_secs" json:"chunk_duration_secs"`
	Result        *JobResult `db:"result"              json:"result,omitempty"`
	ErrorMessage  *string    `db:"error_message"       json:"error_message,omitempty"`
	StartedAt     *time.Time `db:"started_at"          json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at"        json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"          json:"updated_at"`
}

// StatusForStage maps a pipeline stage to the coarse job status clients see.
func StatusForStage(stage string) string {
	switch stage {
	case StagePending:
		return JobStatusPending
	case StageCompleted:
		return JobStatusCompleted
	case StageFailed:
		return JobStatusFailed
	default:
		return JobStatusRunning
	}
}

// TerminalStage reports whether a stage ends the job's lifecycle.
func TerminalStage(stage string) bool {
	return stage == StageCompleted || stage == StageFailed
}
