// Package timecode converts between second counts and the clock-style
// timestamps used by transcripts, classifier payloads, and media tools.
// All functions are pure.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMMSS parses a "MM:SS" timestamp into whole seconds. Minutes may
// exceed 59, so "75:30" is 4530 seconds. The result can be negative when
// the minute field is; callers reject negative values where they matter.
func ParseMMSS(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("timestamp %q: want MM:SS", s)
	}
	mins, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: bad minutes", s)
	}
	secs, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: bad seconds", s)
	}
	return mins*60 + secs, nil
}

// FormatMMSS renders whole seconds as "MM:SS".
func FormatMMSS(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatHHMMSS renders whole seconds as "HH:MM:SS", the form ffmpeg takes
// for -ss and -t.
func FormatHHMMSS(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// ValidateWindow parses a start/end timestamp pair and bounds it to a chunk
// duration in seconds. An end past the duration is clamped rather than
// rejected; a malformed timestamp, a negative start, or a window that is
// empty after clamping returns an error.
func ValidateWindow(startStr, endStr string, duration int) (start, end int, err error) {
	start, err = ParseMMSS(startStr)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseMMSS(endStr)
	if err != nil {
		return 0, 0, err
	}
	if start < 0 {
		return 0, 0, fmt.Errorf("window %s-%s: negative start", startStr, endStr)
	}
	if end > duration {
		end = duration
	}
	if start >= end {
		return 0, 0, fmt.Errorf("window %s-%s: start not before end (duration %ds)", startStr, endStr, duration)
	}
	return start, end, nil
}
