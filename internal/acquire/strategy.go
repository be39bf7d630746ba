package acquire

import (
	"strconv"
	"time"
)

// Strategy is one download profile for platform sources. Profiles are tried
// in order; later ones trade quality for reachability.
type Strategy struct {
	Name           string
	Format         string
	FormatSort     string
	ExtractorArgs  string
	Headers        []string
	Retries        int
	SleepMin       time.Duration
	SleepMax       time.Duration
	GeoBypass      bool
	PreferInsecure bool
}

// DefaultStrategies returns the ordered download profiles: 720p with a
// desktop identity, 480p with a second identity and more retries, then
// lowest quality for restricted sources.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:          "standard-720p",
			Format:        "best[height<=720][ext=mp4]/best[height<=720]/best[ext=mp4]/best[ext=webm]/best",
			FormatSort:    "res:720,ext:mp4:m4a,hasvid,hasaud",
			ExtractorArgs: "youtube:player_client=web,android,mweb;player_skip=webpage,configs;skip=dash,hls",
			Headers: []string{
				"User-Agent: Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Accept: text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
				"Accept-Language: en-us,en;q=0.5",
			},
			Retries:        3,
			SleepMin:       1 * time.Second,
			SleepMax:       5 * time.Second,
			GeoBypass:      true,
			PreferInsecure: true,
		},
		{
			Name:          "aggressive-480p",
			Format:        "best[height<=480][ext=mp4]/best[height<=480]/best[ext=mp4]/best",
			FormatSort:    "res:480,ext:mp4:m4a,hasvid,hasaud",
			ExtractorArgs: "youtube:player_client=web,android,mweb;player_skip=webpage,configs;skip=dash,hls",
			Headers: []string{
				"User-Agent: Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Accept: text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
				"Accept-Language: en-US,en;q=0.9",
				"DNT: 1",
			},
			Retries:        5,
			SleepMin:       2 * time.Second,
			SleepMax:       10 * time.Second,
			GeoBypass:      true,
			PreferInsecure: true,
		},
		{
			Name:   "minimal-worst",
			Format: "worst[ext=mp4]/worst[ext=webm]/worst",
			Headers: []string{
				"User-Agent: Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Accept: text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
				"Accept-Language: en-US,en;q=0.5",
			},
			Retries:  2,
			SleepMin: 3 * time.Second,
			SleepMax: 15 * time.Second,
		},
	}
}

// Args builds the yt-dlp argument vector for one invocation. Whole-download
// retries are handled by the caller's retry policy, so only transfer-level
// retry flags are passed through.
func (s Strategy) Args(url, outputTemplate, cookiesFile string) []string {
	args := []string{
		"-f", s.Format,
		"-o", outputTemplate,
		"--no-colors",
		"--no-check-certificates",
	}
	if s.GeoBypass {
		args = append(args, "--geo-bypass")
	}
	if s.PreferInsecure {
		args = append(args, "--prefer-insecure")
	}
	if s.FormatSort != "" {
		args = append(args, "-S", s.FormatSort, "--format-sort-force")
	}
	if s.ExtractorArgs != "" {
		args = append(args, "--extractor-args", s.ExtractorArgs)
	}
	for _, h := range s.Headers {
		args = append(args, "--add-header", h)
	}
	args = append(args,
		"--fragment-retries", strconv.Itoa(s.Retries),
		"--file-access-retries", strconv.Itoa(s.Retries),
		"--sleep-interval", strconv.Itoa(int(s.SleepMin.Seconds())),
		"--max-sleep-interval", strconv.Itoa(int(s.SleepMax.Seconds())),
	)
	if cookiesFile != "" {
		args = append(args, "--cookies", cookiesFile)
	}
	return append(args, url)
}
