// Package chunk splits extracted audio into fixed transcription windows.
package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/clipminer/internal/config"
	"github.com/kiranshivaraju/clipminer/internal/media"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// AudioCutter is the subset of media.Tools the chunker needs.
type AudioCutter interface {
	Duration(ctx context.Context, path string) (float64, error)
	CutChunk(ctx context.Context, src string, startSec, durSec float64, dst string) error
}

// Chunker materializes audio windows of a nominal duration. Files at or
// below the size threshold skip chunking and become a single chunk.
type Chunker struct {
	cutter       AudioCutter
	durationSecs int
	thresholdMB  int
}

// New creates a Chunker from pipeline configuration.
func New(cutter AudioCutter, cfg config.PipelineConfig) *Chunker {
	return &Chunker{
		cutter:       cutter,
		durationSecs: cfg.ChunkDurationSecs,
		thresholdMB:  cfg.ChunkThresholdMB,
	}
}

// Split divides the audio file into ceil(total/duration) windows, numbered
// from 1. Every window spans the nominal duration except the last, which
// takes the remainder. durationSecs overrides the configured window length
// when positive. The source file is removed once all windows are cut.
func (c *Chunker) Split(ctx context.Context, audioPath string, durationSecs int) ([]models.AudioChunk, error) {
	if durationSecs <= 0 {
		durationSecs = c.durationSecs
	}
	sizeMB, err := media.FileSizeMB(audioPath)
	if err != nil {
		return nil, fmt.Errorf("sizing audio file: %w", err)
	}

	total, err := c.cutter.Duration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("probing audio duration: %w", err)
	}

	if sizeMB <= float64(c.thresholdMB) {
		slog.Info("audio below chunking threshold, using single chunk",
			"path", audioPath, "size_mb", sizeMB, "duration_sec", total)
		return []models.AudioChunk{{Number: 1, Path: audioPath, Duration: total}}, nil
	}

	nominal := float64(durationSecs)
	n := int(math.Ceil(total / nominal))
	if n < 1 {
		n = 1
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	dir := filepath.Dir(audioPath)

	chunks := make([]models.AudioChunk, 0, n)
	for i := 1; i <= n; i++ {
		start := float64(i-1) * nominal
		dur := nominal
		if remaining := total - start; remaining < dur {
			dur = remaining
		}

		dst := filepath.Join(dir, fmt.Sprintf("chunk_%03d_%s.mp3", i, stem))
		if err := c.cutter.CutChunk(ctx, audioPath, start, dur, dst); err != nil {
			return nil, fmt.Errorf("cutting chunk %d/%d: %w", i, n, err)
		}
		chunks = append(chunks, models.AudioChunk{Number: i, Path: dst, Duration: dur})
		slog.Info("chunk created", "chunk", i, "total", n, "start_sec", start, "duration_sec", dur)
	}

	if err := os.Remove(audioPath); err != nil {
		slog.Warn("could not remove source audio after chunking", "path", audioPath, "error", err)
	}

	return chunks, nil
}
