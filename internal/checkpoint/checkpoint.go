// Package checkpoint persists resumable per-source job state between runs.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kiranshivaraju/clipminer/internal/timeline"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

var (
	// ErrNotFound indicates no checkpoint exists for the source.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrCorrupt indicates a checkpoint exists but cannot be trusted. The
	// caller discards it and restarts from scratch.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// Record is one job's resumable state. Stage names the last completed
// checkpointable stage; Resume carries what the later stages need.
type Record struct {
	Source  string     `json:"source"`
	Stage   string     `json:"stage"`
	Resume  ResumeData `json:"resume_data"`
	SavedAt time.Time  `json:"saved_at"`
}

// ResumeData references the intermediates a resumed job reuses instead of
// recomputing. The extracted audio is never referenced here: the chunker
// consumes it, so by the first checkpoint it is already gone. Timeline,
// Artifacts and FailedCuts are only present once segment extraction has
// completed.
type ResumeData struct {
	VideoPath   string                   `json:"video_path"`
	Chunks      []models.AudioChunk      `json:"chunks"`
	Transcripts []models.ChunkTranscript `json:"transcripts"`
	Timeline    *timeline.Timeline       `json:"timeline,omitempty"`
	Artifacts   []models.SegmentArtifact `json:"artifacts,omitempty"`
	FailedCuts  []string                 `json:"failed_cuts,omitempty"`
}

// MissingFiles reports referenced local files that no longer exist. Any
// missing file makes the record unusable for resume.
func (r Record) MissingFiles() []string {
	var missing []string
	stat := func(path string) {
		if path == "" {
			return
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}

	stat(r.Resume.VideoPath)
	for _, c := range r.Resume.Chunks {
		stat(c.Path)
	}
	for _, a := range r.Resume.Artifacts {
		stat(a.LocalPath)
	}
	return missing
}

// Store keeps one JSON checkpoint file per source under a single directory.
type Store struct {
	dir string
}

// NewStore creates a checkpoint store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes rec atomically: marshal to a temp file in the checkpoint
// directory, then rename over the final path so a crash mid-write never
// leaves a torn record behind.
func (s *Store) Save(rec Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint dir: %w", err)
	}

	rec.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	final := s.path(rec.Source)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(final)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publishing checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint for source. Unreadable or unparsable files and
// records written for a different source come back as ErrCorrupt.
func (s *Store) Load(source string) (Record, error) {
	data, err := os.ReadFile(s.path(source))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Source != source {
		return Record{}, fmt.Errorf("%w: source mismatch", ErrCorrupt)
	}
	return rec, nil
}

// Delete removes the checkpoint for source. A missing file is not an error.
func (s *Store) Delete(source string) error {
	err := os.Remove(s.path(source))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// path derives the per-source file name from the source digest, keeping
// arbitrary URLs and local paths filesystem-safe.
func (s *Store) path(source string) string {
	sum := sha256.Sum256([]byte(source))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:8])+".json")
}
