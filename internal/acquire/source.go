package acquire

import (
	"regexp"
	"strings"

	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// platformPatterns match watch-page URLs that need the strategy downloader
// rather than a plain HTTP fetch.
var platformPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/embed/[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/v/[\w-]+`),
}

// ClassifySource decides which acquisition path a source string takes.
func ClassifySource(src string) string {
	for _, p := range platformPatterns {
		if p.MatchString(src) {
			return models.SourceKindPlatform
		}
	}
	if strings.HasPrefix(src, "s3://") {
		return models.SourceKindObject
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return models.SourceKindURL
	}
	return models.SourceKindFile
}
