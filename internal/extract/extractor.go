// Package extract cuts timeline entries out of the original source media.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/clipminer/internal/timeline"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// InteractionsSubdir is where interaction clips land, relative to the
// segment output directory.
const InteractionsSubdir = "interactions"

const maxNameLen = 100

// Filename sanitization regexes compiled once at package init.
var (
	reIllegal    = regexp.MustCompile(`[<>:"/\\|?*]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// SegmentCutter issues a non-transcoding cut of a time range.
type SegmentCutter interface {
	CutSegment(ctx context.Context, src string, startSec, durSec int, dst string) error
}

// Extractor turns timeline entries into clip files.
type Extractor struct {
	cutter SegmentCutter
}

// New creates an Extractor over the given cutter.
func New(cutter SegmentCutter) *Extractor {
	return &Extractor{cutter: cutter}
}

// Result is the outcome of one extraction stage: the clips that were cut and
// a note per entry that was not.
type Result struct {
	Artifacts  []models.SegmentArtifact
	FailedCuts []string
}

// Cut materializes every timeline entry as a clip under outDir, cutting from
// the original source. Topic clips land in outDir, interaction clips under
// outDir/interactions, each numbered within its own kind. A failed or
// impossible cut is recorded and the remaining entries still attempted.
func (e *Extractor) Cut(ctx context.Context, src string, tl timeline.Timeline, outDir string) (Result, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating segment dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(outDir, InteractionsSubdir), 0o755); err != nil {
		return Result{}, fmt.Errorf("creating interactions dir: %w", err)
	}

	res := Result{
		Artifacts:  []models.SegmentArtifact{},
		FailedCuts: []string{},
	}

	for i, entry := range tl.Topics {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := fmt.Sprintf("%02d_%s.mp4", i+1, sanitizeTitle(entry.Title))
		e.cutOne(ctx, src, entry, filepath.Join(outDir, name), name, &res)
	}
	for i, entry := range tl.Interactions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := fmt.Sprintf("%02d_%s_%s.mp4", i+1, sanitizeTitle(entry.InteractionType), sanitizeTitle(entry.Title))
		e.cutOne(ctx, src, entry, filepath.Join(outDir, InteractionsSubdir, name), name, &res)
	}

	slog.Info("segment extraction finished",
		"artifacts", len(res.Artifacts),
		"failed", len(res.FailedCuts))
	return res, nil
}

// cutOne cuts a single entry, appending either an artifact or a failure note.
func (e *Extractor) cutOne(ctx context.Context, src string, entry models.TimelineEntry, dst, name string, res *Result) {
	if entry.EndTime <= entry.StartTime {
		slog.Warn("skipping entry with empty window",
			"title", entry.Title, "start", entry.StartTime, "end", entry.EndTime)
		res.FailedCuts = append(res.FailedCuts,
			fmt.Sprintf("%s: empty window %d-%d", name, entry.StartTime, entry.EndTime))
		return
	}

	if err := e.cutter.CutSegment(ctx, src, entry.StartTime, entry.EndTime-entry.StartTime, dst); err != nil {
		slog.Warn("segment cut failed, continuing", "file", name, "error", err)
		res.FailedCuts = append(res.FailedCuts, fmt.Sprintf("%s: %v", name, err))
		return
	}

	var size int64
	if info, err := os.Stat(dst); err == nil {
		size = info.Size()
	}

	res.Artifacts = append(res.Artifacts, models.SegmentArtifact{
		FileName:  name,
		Kind:      entry.Kind,
		Title:     entry.Title,
		StartTime: entry.StartTime,
		EndTime:   entry.EndTime,
		SizeBytes: size,
		LocalPath: dst,
	})
}

// sanitizeTitle derives a filesystem-safe name from a clip title: characters
// illegal in filenames are stripped, runs of whitespace become one
// underscore, and the result is bounded.
func sanitizeTitle(title string) string {
	name := reIllegal.ReplaceAllString(title, "")
	name = reWhitespace.ReplaceAllString(strings.TrimSpace(name), "_")
	return truncateString(name, maxNameLen)
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
