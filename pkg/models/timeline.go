package models

// Timeline entry kinds. Topics and interactions are numbered and published
// independently of each other.
const (
	KindTopic       = "topic"
	KindInteraction = "interaction"
)

// Topic is a classifier-detected topic local to one chunk. Times are seconds
// from the start of the chunk, already validated and clamped.
type Topic struct {
	Title       string `json:"title"`
	ParentTopic string `json:"parent_topic,omitempty"`
	StartSec    int    `json:"start_sec"`
	EndSec      int    `json:"end_sec"`
}

// Interaction is a detected speaker-audience exchange local to one chunk.
type Interaction struct {
	Title           string `json:"title"`
	InteractionType string `json:"interaction_type"`
	StartSec        int    `json:"start_sec"`
	EndSec          int    `json:"end_sec"`
}

// ChunkAnalysis is the validated classifier output for one chunk.
type ChunkAnalysis struct {
	ChunkNumber  int           `json:"chunk_number"`
	Duration     int           `json:"duration"` // seconds, used as the validation bound
	Topics       []Topic       `json:"topics"`
	Interactions []Interaction `json:"interactions"`
}

// TimelineEntry addresses one topic or interaction on the global source
// timeline, in integer seconds from the start of the whole source.
type TimelineEntry struct {
	Kind            string `json:"kind"`
	Title           string `json:"title"`
	ParentTopic     string `json:"parent_topic,omitempty"`
	InteractionType string `json:"interaction_type,omitempty"`
	StartTime       int    `json:"start_time"`
	EndTime         int    `json:"end_time"`
	SourceChunk     int    `json:"source_chunk"`
}
