package models

import "context"

// Transcriber converts one audio chunk into timed text segments.
// Never call a speech-to-text vendor directly; always inject this interface.
type Transcriber interface {
	// Transcribe uploads the audio file at path and returns its ordered segments.
	Transcribe(ctx context.Context, path string) ([]TranscriptSegment, error)
	// Name returns the provider identifier (e.g., "openai").
	Name() string
}

// TopicQuery is the input to a topic-continuity classification call.
// PreviousTopics carries exactly one chunk of lookback, not the full history.
type TopicQuery struct {
	Transcript     string
	PreviousTopics []Topic
	ChunkDuration  int // seconds; reply timestamps must stay inside this bound
}

// InteractionQuery is the input to an interaction-detection call.
type InteractionQuery struct {
	Transcript    string
	ChunkDuration int
}

// Classifier derives topics and audience interactions from a chunk transcript.
// Both methods return the model's raw payload; callers treat it as an
// untrusted schema and parse/validate it themselves.
type Classifier interface {
	Topics(ctx context.Context, q TopicQuery) (string, error)
	Interactions(ctx context.Context, q InteractionQuery) (string, error)
	Name() string
}
