package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kiranshivaraju/clipminer/pkg/timecode"
)

// audioExtByCodec maps detected audio codecs to output file extensions for
// stream-copied extraction. Unknown codecs fall back to "audio".
var audioExtByCodec = map[string]string{
	"aac":  "aac",
	"mp3":  "mp3",
	"wav":  "wav",
	"flac": "flac",
	"opus": "opus",
	"m4a":  "m4a",
	"ogg":  "ogg",
}

// ExtractAudio pulls the audio track out of a video without re-encoding.
// The output extension follows the detected codec so the stream copy stays
// valid. Returns the path of the written file.
func (t *Tools) ExtractAudio(ctx context.Context, videoPath, outDir, baseName string) (string, error) {
	codec, err := t.AudioCodec(ctx, videoPath)
	if err != nil {
		return "", err
	}

	ext, ok := audioExtByCodec[codec]
	if !ok {
		ext = "audio"
	}
	dst := filepath.Join(outDir, fmt.Sprintf("%s_audio.%s", baseName, ext))

	_, err = t.exec.Execute(ctx, t.ffmpeg,
		"-i", videoPath,
		"-vn",
		"-acodec", "copy",
		"-y",
		dst,
	)
	if err != nil {
		return "", fmt.Errorf("audio extraction failed: %w", err)
	}

	if err := verifyNonEmpty(dst); err != nil {
		return "", fmt.Errorf("audio extraction produced no output: %w", err)
	}
	return dst, nil
}

// CutChunk cuts [startSec, startSec+durSec) out of an audio file and encodes
// it as mp3. Chunks are always mp3 regardless of the source codec so the
// transcription backend sees one format.
func (t *Tools) CutChunk(ctx context.Context, src string, startSec, durSec float64, dst string) error {
	_, err := t.exec.Execute(ctx, t.ffmpeg,
		"-i", src,
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(durSec),
		"-vn",
		"-acodec", "mp3",
		"-ab", "192k",
		"-y",
		dst,
	)
	if err != nil {
		return fmt.Errorf("chunk cut failed: %w", err)
	}
	return verifyNonEmpty(dst)
}

// CutSegment cuts [startSec, startSec+durSec) out of a video using stream
// copy. No re-encoding keeps cuts fast at the cost of keyframe-aligned
// boundaries.
func (t *Tools) CutSegment(ctx context.Context, src string, startSec, durSec int, dst string) error {
	_, err := t.exec.Execute(ctx, t.ffmpeg,
		"-i", src,
		"-ss", timecode.FormatHHMMSS(startSec),
		"-t", timecode.FormatHHMMSS(durSec),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y",
		dst,
	)
	if err != nil {
		return fmt.Errorf("segment cut failed: %w", err)
	}
	return verifyNonEmpty(dst)
}

// FileSizeMB returns the size of a file in megabytes.
func FileSizeMB(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return float64(info.Size()) / (1024 * 1024), nil
}

func verifyNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty output file %s", path)
	}
	return nil
}

func formatSeconds(secs float64) string {
	return strconv.FormatFloat(secs, 'f', 3, 64)
}
