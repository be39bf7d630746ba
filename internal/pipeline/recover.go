package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/clipminer/internal/store"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

const recoverPageSize = 100

// RecoveryStore lists and resets jobs left over from a previous process.
type RecoveryStore interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
	ResetJob(ctx context.Context, id uuid.UUID) error
}

// Recover re-dispatches jobs a previous process left unfinished: running
// jobs are reset to pending, then everything pending is enqueued. Their
// checkpoints let the runner skip stages that already completed. Call this
// after NewPool and before Start, while nothing competes for the queue.
func Recover(ctx context.Context, st RecoveryStore, pool *Pool) (int, error) {
	interrupted, err := listAll(ctx, st, models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("listing interrupted jobs: %w", err)
	}
	pending, err := listAll(ctx, st, models.JobStatusPending)
	if err != nil {
		return 0, fmt.Errorf("listing pending jobs: %w", err)
	}

	recovered := 0
	for _, job := range interrupted {
		if err := st.ResetJob(ctx, job.ID); err != nil {
			slog.Warn("could not reset interrupted job", "job_id", job.ID, "error", err)
			continue
		}
		if err := pool.Enqueue(job); err != nil {
			slog.Warn("could not requeue interrupted job", "job_id", job.ID, "error", err)
			continue
		}
		recovered++
	}
	for _, job := range pending {
		if err := pool.Enqueue(job); err != nil {
			slog.Warn("could not requeue pending job", "job_id", job.ID, "error", err)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		slog.Info("recovered unfinished jobs", "count", recovered)
	}
	return recovered, nil
}

func listAll(ctx context.Context, st RecoveryStore, status string) ([]*models.Job, error) {
	var all []*models.Job
	for page := 1; ; page++ {
		jobs, _, err := st.ListJobs(ctx, store.JobFilter{Status: status, Page: page, Limit: recoverPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, jobs...)
		if len(jobs) < recoverPageSize {
			return all, nil
		}
	}
}
