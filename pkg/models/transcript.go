package models

// AudioChunk is one bounded-duration window of the extracted audio stream.
// Chunks are numbered 1..n in source order and are immutable once created.
type AudioChunk struct {
	Number   int     `json:"number"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"` // seconds; equals the nominal duration for all but the final chunk
}

// TranscriptSegment is a single timed span of recognized speech, with start
// and end in seconds relative to the start of its chunk.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ChunkTranscript is the rendered, timestamped transcript for one chunk:
// one "[MM:SS --> MM:SS] text" line per segment.
type ChunkTranscript struct {
	ChunkNumber int    `json:"chunk_number"`
	Text        string `json:"text"`
}
