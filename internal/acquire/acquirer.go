// Package acquire turns a job's source reference into a verified local video
// file. Platform sources go through an ordered list of download strategies;
// direct URLs, object-store references and local files take simpler paths.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kiranshivaraju/clipminer/internal/config"
	"github.com/kiranshivaraju/clipminer/internal/media"
	"github.com/kiranshivaraju/clipminer/internal/retry"
	"github.com/kiranshivaraju/clipminer/internal/storage"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

var (
	// ErrStrategyFailed indicates one download strategy failed in a way the
	// next strategy may recover from.
	ErrStrategyFailed = errors.New("download strategy failed")

	// ErrSourceUnavailable indicates the source itself is gone or locked.
	// No strategy or retry will recover it.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrAllStrategiesFailed indicates every configured strategy was tried
	// without producing a usable video file.
	ErrAllStrategiesFailed = errors.New("all download strategies failed")
)

// permanentSignatures mark downloader output that no retry or later
// strategy can recover.
var permanentSignatures = []string{
	"video unavailable",
	"private video",
	"has been removed",
}

// videoExtensions are the container types accepted during candidate
// discovery in the work directory.
var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mkv": true, ".avi": true,
	".mov": true, ".flv": true, ".m4v": true, ".3gp": true,
}

// ObjectStore fetches objects referenced by s3:// sources.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key, dst string) error
}

// Acquirer resolves job sources into verified local video files.
type Acquirer struct {
	ytdlp       string
	workDir     string
	cookies     string
	exec        media.Executor
	tools       *media.Tools
	objects     ObjectStore
	httpClient  *http.Client
	strategies  []Strategy
	fetchPolicy retry.Policy
}

// New creates an Acquirer with the default strategy list.
func New(cfg config.MediaConfig, exec media.Executor, tools *media.Tools, objects ObjectStore) *Acquirer {
	return &Acquirer{
		ytdlp:      cfg.YTDLPPath,
		workDir:    cfg.WorkDir,
		cookies:    cfg.CookiesFile,
		exec:       exec,
		tools:      tools,
		objects:    objects,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		strategies: DefaultStrategies(),
		fetchPolicy: retry.Policy{
			Attempts:  3,
			Delay:     2 * time.Second,
			Permanent: isPermanentFailure,
		},
	}
}

// Acquire fetches the job's source and returns the path of a verified local
// video file inside the work directory.
func (a *Acquirer) Acquire(ctx context.Context, job *models.Job) (string, error) {
	if err := os.MkdirAll(a.workDir, 0o755); err != nil {
		return "", fmt.Errorf("creating work dir: %w", err)
	}

	switch job.SourceKind {
	case models.SourceKindPlatform:
		return a.fromPlatform(ctx, job.ID.String(), job.Source)
	case models.SourceKindURL:
		return a.fromURL(ctx, job.ID.String(), job.Source)
	case models.SourceKindObject:
		return a.fromObject(ctx, job.ID.String(), job.Source)
	case models.SourceKindFile:
		return a.fromFile(ctx, job.Source)
	default:
		return "", fmt.Errorf("unknown source kind %q", job.SourceKind)
	}
}

func (a *Acquirer) fromPlatform(ctx context.Context, jobID, sourceURL string) (string, error) {
	tmpl := filepath.Join(a.workDir, jobID+"_video.%(ext)s")

	for i, strat := range a.strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		slog.Info("trying download strategy",
			"job_id", jobID, "strategy", strat.Name, "position", i+1, "total", len(a.strategies))

		policy := retry.Policy{
			Attempts:  strat.Retries,
			Delay:     strat.SleepMin,
			MaxDelay:  strat.SleepMax,
			Permanent: stopsStrategy,
		}
		err := policy.Do(ctx, func(ctx context.Context) error {
			_, runErr := a.exec.Execute(ctx, a.ytdlp, strat.Args(sourceURL, tmpl, a.cookies)...)
			return runErr
		})
		if err != nil {
			if isPermanentFailure(err) {
				return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
			}
			if isBotDetection(err) {
				slog.Warn("strategy blocked by bot detection", "job_id", jobID, "strategy", strat.Name)
			} else {
				slog.Warn("strategy failed", "job_id", jobID, "strategy", strat.Name, "error", err)
			}
			continue
		}

		found, err := a.locateVerified(ctx, jobID)
		if err != nil {
			slog.Warn("no usable download from strategy",
				"job_id", jobID, "strategy", strat.Name, "error", err)
			continue
		}
		return found, nil
	}

	return "", ErrAllStrategiesFailed
}

func (a *Acquirer) fromURL(ctx context.Context, jobID, rawURL string) (string, error) {
	dst := filepath.Join(a.workDir, jobID+"_video"+urlExt(rawURL))

	err := a.fetchPolicy.Do(ctx, func(ctx context.Context) error {
		return a.fetchHTTP(ctx, rawURL, dst)
	})
	if err != nil {
		return "", err
	}

	if err := a.tools.VerifyVideo(ctx, dst); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return dst, nil
}

func (a *Acquirer) fromObject(ctx context.Context, jobID, ref string) (string, error) {
	bucket, key, err := parseObjectRef(ref)
	if err != nil {
		return "", err
	}

	ext := path.Ext(key)
	if ext == "" {
		ext = ".mp4"
	}
	dst := filepath.Join(a.workDir, jobID+"_video"+ext)

	err = a.fetchPolicy.Do(ctx, func(ctx context.Context) error {
		return a.objects.Download(ctx, bucket, key, dst)
	})
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ErrSourceUnavailable, ref, err)
	}

	if err := a.tools.VerifyVideo(ctx, dst); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return dst, nil
}

func (a *Acquirer) fromFile(ctx context.Context, src string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if err := a.tools.VerifyVideo(ctx, src); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return src, nil
}

// locateVerified finds the downloaded file and probe-verifies it. Candidates
// matching the job's output template are preferred; otherwise any video file
// in the work dir is considered, newest first.
func (a *Acquirer) locateVerified(ctx context.Context, jobID string) (string, error) {
	candidates, err := a.candidates(jobID)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no downloaded file found", ErrStrategyFailed)
	}

	for _, cand := range candidates {
		if err := a.tools.VerifyVideo(ctx, cand); err != nil {
			slog.Warn("download candidate failed probe", "path", cand, "error", err)
			continue
		}
		return cand, nil
	}
	return "", fmt.Errorf("%w: no candidate passed probe", ErrStrategyFailed)
}

func (a *Acquirer) candidates(jobID string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(a.workDir, jobID+"_video.*"))
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}

	entries, err := os.ReadDir(a.workDir)
	if err != nil {
		return nil, err
	}

	type aged struct {
		path string
		mod  time.Time
	}
	var found []aged
	for _, e := range entries {
		if e.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, aged{filepath.Join(a.workDir, e.Name()), info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

func (a *Acquirer) fetchHTTP(ctx context.Context, rawURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStrategyFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: source returned %d", ErrSourceUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: source returned %d", ErrStrategyFailed, resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrStrategyFailed, err)
	}
	return nil
}

// stopsStrategy reports whether an error should end the current strategy's
// retry loop. Bot detection moves straight to the next strategy; permanent
// failures abort acquisition entirely.
func stopsStrategy(err error) bool {
	return isPermanentFailure(err) || isBotDetection(err)
}

func isPermanentFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSourceUnavailable) {
		return true
	}
	if errors.Is(err, storage.ErrObjectNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range permanentSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

func isBotDetection(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "sign in to confirm")
}

func parseObjectRef(ref string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(ref, "s3://")
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: malformed object reference %q", ErrSourceUnavailable, ref)
	}
	return bucket, key, nil
}

func urlExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp4"
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return ".mp4"
}
