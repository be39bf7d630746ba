// Package publish uploads cut segments to the object store and retires the
// job's local intermediates.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kiranshivaraju/clipminer/internal/retry"
	"github.com/kiranshivaraju/clipminer/internal/storage"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

const segmentContentType = "video/mp4"

const (
	maxAttempts = 3
	retryDelay  = 2 * time.Second
)

// Publisher pushes segment artifacts to remote storage. Uploads are keyed by
// artifact kind and upload time so repeated runs of the same source never
// collide.
type Publisher struct {
	store     storage.Client
	keyPrefix string
	keep      bool
	policy    retry.Policy
	now       func() time.Time
}

// New creates a Publisher over the given store. When keepIntermediates is
// set, local files survive publishing regardless of upload outcomes.
func New(store storage.Client, keyPrefix string, keepIntermediates bool) *Publisher {
	return &Publisher{
		store:     store,
		keyPrefix: keyPrefix,
		keep:      keepIntermediates,
		policy:    retry.Policy{Attempts: maxAttempts, Delay: retryDelay},
		now:       time.Now,
	}
}

// Result reports what was published and whether local intermediates were
// kept around.
type Result struct {
	Artifacts             []models.SegmentArtifact
	FailedUploads         []string
	IntermediatesRetained bool
}

// Publish uploads every artifact, retrying each a bounded number of times
// and skipping the ones that never land. Intermediates are deleted only when
// at least one upload succeeded; otherwise everything local is retained for
// diagnosis. Every artifact comes back in the result, with RemoteURL set on
// the uploaded ones.
func (p *Publisher) Publish(ctx context.Context, artifacts []models.SegmentArtifact, intermediates []string) (Result, error) {
	res := Result{
		Artifacts:     []models.SegmentArtifact{},
		FailedUploads: []string{},
	}

	uploaded := 0
	for _, artifact := range artifacts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		key := p.segmentKey(artifact)
		var url string
		err := p.policy.Do(ctx, func(ctx context.Context) error {
			var uploadErr error
			url, uploadErr = p.store.Upload(ctx, artifact.LocalPath, key, segmentContentType)
			return uploadErr
		})
		if err != nil {
			slog.Warn("artifact upload failed, continuing",
				"file", artifact.FileName, "error", err)
			res.FailedUploads = append(res.FailedUploads, fmt.Sprintf("%s: %v", artifact.FileName, err))
			res.Artifacts = append(res.Artifacts, artifact)
			continue
		}

		artifact.RemoteURL = url
		res.Artifacts = append(res.Artifacts, artifact)
		uploaded++
		slog.Info("artifact uploaded", "file", artifact.FileName, "url", url)
	}

	switch {
	case p.keep:
		res.IntermediatesRetained = true
		slog.Info("intermediates retained by config", "count", len(intermediates))
	case uploaded == 0:
		res.IntermediatesRetained = true
		slog.Warn("no uploads succeeded, retaining intermediates",
			"artifacts", len(artifacts), "count", len(intermediates))
	default:
		p.cleanup(intermediates)
	}

	slog.Info("publishing finished",
		"uploaded", uploaded,
		"failed", len(res.FailedUploads),
		"retained", res.IntermediatesRetained)
	return res, nil
}

// segmentKey builds the object key for one artifact, namespaced by kind.
func (p *Publisher) segmentKey(a models.SegmentArtifact) string {
	dir := "topics"
	if a.Kind == models.KindInteraction {
		dir = "interactions"
	}
	return fmt.Sprintf("%s/%s/%d_%s", p.keyPrefix, dir, p.now().Unix(), a.FileName)
}

func (p *Publisher) cleanup(paths []string) {
	removed := 0
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("intermediate cleanup failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	slog.Info("intermediates cleaned up", "removed", removed, "total", len(paths))
}
