package models

// SegmentArtifact is one cut clip produced from a timeline entry.
// RemoteURL is empty until the artifact has been published.
type SegmentArtifact struct {
	FileName  string `json:"filename"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
	SizeBytes int64  `json:"size_bytes"`
	LocalPath string `json:"local_path,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
}

// JobResult is the output of a finished pipeline run. Degraded outcomes
// (fewer artifacts than timeline entries, failed uploads) are reported here
// rather than failing the job.
type JobResult struct {
	Timeline              []TimelineEntry   `json:"timeline"`
	Artifacts             []SegmentArtifact `json:"artifacts"`
	ChunkCount            int               `json:"chunk_count"`
	TranscribedChunks     int               `json:"transcribed_chunks"`
	FailedCuts            []string          `json:"failed_cuts,omitempty"`
	FailedUploads         []string          `json:"failed_uploads,omitempty"`
	IntermediatesRetained bool              `json:"intermediates_retained,omitempty"`
}
