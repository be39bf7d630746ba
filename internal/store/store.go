package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	UpdateJobStage(ctx context.Context, id uuid.UUID, stage string, opts ...JobUpdateOption) error
	ResetJob(ctx context.Context, id uuid.UUID) error
}

type JobFilter struct {
	Status string
	Stage  string
	Page   int
	Limit  int
}

type jobUpdateParams struct {
	Progress     *int
	ErrorMessage *string
	Result       *models.JobResult
}

type JobUpdateOption func(*jobUpdateParams)

func WithProgress(pct int) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Progress = &pct
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithResult(result *models.JobResult) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Result = result
	}
}
