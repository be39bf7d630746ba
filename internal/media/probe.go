package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/clipminer/internal/config"
)

// ErrProbeFailed indicates ffprobe could not read the file or the file does
// not contain the expected stream.
var ErrProbeFailed = errors.New("media probe failed")

// Tools invokes ffmpeg and ffprobe at the configured paths.
type Tools struct {
	ffmpeg  string
	ffprobe string
	exec    Executor
}

// NewTools creates a Tools instance from media configuration.
func NewTools(cfg config.MediaConfig, exec Executor) *Tools {
	return &Tools{
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		exec:    exec,
	}
}

// Duration returns the container duration of a media file in seconds.
func (t *Tools) Duration(ctx context.Context, path string) (float64, error) {
	out, err := t.exec.Execute(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparsable duration %q", ErrProbeFailed, strings.TrimSpace(out))
	}
	return dur, nil
}

// AudioCodec returns the codec name of the first audio stream. The result
// may be empty when the file has no audio stream.
func (t *Tools) AudioCodec(ctx context.Context, path string) (string, error) {
	out, err := t.exec.Execute(ctx, t.ffprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return strings.TrimSpace(out), nil
}

// VerifyVideo checks that the file contains a decodable video stream.
// Downloaded candidates are rejected when the check fails.
func (t *Tools) VerifyVideo(ctx context.Context, path string) error {
	out, err := t.exec.Execute(ctx, t.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	if !strings.Contains(out, "video") {
		return fmt.Errorf("%w: no video stream in %s", ErrProbeFailed, path)
	}
	return nil
}
