package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/clipminer/internal/store"
	"github.com/kiranshivaraju/clipminer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("clipminer_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newJob returns a freshly submitted job in the pending stage.
func newJob(source string) *models.Job {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Job{
		ID:            uuid.New(),
		Source:        source,
		SourceKind:    models.SourceKindURL,
		Stage:         models.StagePending,
		Status:        models.JobStatusPending,
		ChunkDuration: 600,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "cm_abcd",
		Scopes:    []string{"jobs:write", "jobs:read"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.CreateAPIKey(ctx, key)
	require.NoError(t, err)

	// Get by prefix
	keys, err := s.GetAPIKeyByPrefix(ctx, "cm_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "test-key", keys[0].Name)
}

func TestAPIKey_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		err := s.CreateAPIKey(ctx, &models.APIKey{
			ID:        uuid.New(),
			Name:      "key-" + uuid.NewString()[:4],
			KeyHash:   "hash-" + uuid.NewString()[:4],
			KeyPrefix: "cm_" + uuid.NewString()[:4],
			Scopes:    []string{"jobs:read"},
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.NoError(t, err)
	}

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "revoke-me",
		KeyHash:   "hash",
		KeyPrefix: "cm_revk",
		Scopes:    []string{"jobs:read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	// Revoke
	err := s.RevokeAPIKey(ctx, key.ID)
	require.NoError(t, err)

	// Should not appear in list or prefix lookup
	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.GetAPIKeyByPrefix(ctx, "cm_revk")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPIKey_RevokeNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.RevokeAPIKey(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "usage-key",
		KeyHash:   "hash",
		KeyPrefix: "cm_used",
		Scopes:    []string{"jobs:read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	err := s.UpdateAPIKeyLastUsed(ctx, key.ID)
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "cm_used")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestAPIKey_DuplicateName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID: uuid.New(), Name: "ci-uploader", KeyHash: "h1", KeyPrefix: "cm_dup1",
		Scopes: []string{"jobs:read"}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	key2 := &models.APIKey{
		ID: uuid.New(), Name: "ci-uploader", KeyHash: "h2", KeyPrefix: "cm_dup2",
		Scopes: []string{"jobs:read"}, CreatedAt: now, UpdatedAt: now,
	}
	err := s.CreateAPIKey(ctx, key2)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

// --- Job Tests ---

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StagePending, got.Stage)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 600, got.ChunkDuration)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.Result)
}

func TestJob_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/a")
	require.NoError(t, s.CreateJob(ctx, job))

	dup := newJob("https://videos.example.edu/b")
	dup.ID = job.ID
	err := s.CreateJob(ctx, dup)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestJob_StageAdvancesWithProgress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.UpdateJobStage(ctx, job.ID, models.StageAcquiring, store.WithProgress(5))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageAcquiring, got.Stage)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.Equal(t, 5, got.Progress)
	assert.NotNil(t, got.StartedAt)
}

func TestJob_SameStageProgressUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJobStage(ctx, job.ID, models.StageTranscribing, store.WithProgress(40)))

	// Per-chunk progress lands repeatedly on the same stage.
	err := s.UpdateJobStage(ctx, job.ID, models.StageTranscribing, store.WithProgress(55))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageTranscribing, got.Stage)
	assert.Equal(t, 55, got.Progress)
}

func TestJob_ForwardJumpAllowed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	// Resuming from a checkpoint skips already-finished stages.
	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.UpdateJobStage(ctx, job.ID, models.StageAnalyzing, store.WithProgress(70))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageAnalyzing, got.Stage)
	assert.NotNil(t, got.StartedAt)
}

func TestJob_BackwardTransitionRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJobStage(ctx, job.ID, models.StageTranscribing))

	err := s.UpdateJobStage(ctx, job.ID, models.StageChunking)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job stage transition")
}

func TestJob_CompleteStoresResult(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJobStage(ctx, job.ID, models.StagePublishing, store.WithProgress(95)))

	result := &models.JobResult{
		Timeline: []models.TimelineEntry{
			{Kind: "topic", Title: "React Hooks", StartTime: 0, EndTime: 480, SourceChunk: 1},
			{Kind: "interaction", Title: "Student Question: Effects", ParentTopic: "React Hooks",
				InteractionType: "question", StartTime: 480, EndTime: 540, SourceChunk: 1},
		},
		Artifacts: []models.SegmentArtifact{
			{FileName: "01_React_Hooks.mp4", Kind: "topic", Title: "React Hooks",
				StartTime: 0, EndTime: 480, RemoteURL: "https://cdn.test/video-segments/topics/01_React_Hooks.mp4"},
		},
		ChunkCount:        2,
		TranscribedChunks: 2,
		FailedUploads:     []string{"02_Closing_Remarks.mp4: upload timed out"},
	}
	err := s.UpdateJobStage(ctx, job.ID, models.StageCompleted,
		store.WithProgress(100), store.WithResult(result))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Result)
	assert.Len(t, got.Result.Timeline, 2)
	assert.Equal(t, "React Hooks", got.Result.Timeline[0].Title)
	assert.Len(t, got.Result.Artifacts, 1)
	assert.Equal(t, 2, got.Result.ChunkCount)
	assert.Equal(t, []string{"02_Closing_Remarks.mp4: upload timed out"}, got.Result.FailedUploads)
}

func TestJob_FailFromAnyStage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/gone")
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.UpdateJobStage(ctx, job.ID, models.StageFailed,
		store.WithErrorMessage("source unavailable: video has been removed"))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "source unavailable: video has been removed", *got.ErrorMessage)
}

func TestJob_TerminalStageFrozen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJobStage(ctx, job.ID, models.StageCompleted, store.WithProgress(100)))

	err := s.UpdateJobStage(ctx, job.ID, models.StageFailed)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job stage transition")
}

func TestJob_UpdateStageNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateJobStage(context.Background(), uuid.New(), models.StageAcquiring)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_ResetReturnsRunningJobToPending(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJobStage(ctx, job.ID, models.StageTranscribing, store.WithProgress(48)))

	require.NoError(t, s.ResetJob(ctx, job.ID))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StagePending, got.Stage)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.StartedAt)

	// A reset job can run through the pipeline again.
	require.NoError(t, s.UpdateJobStage(ctx, job.ID, models.StageAcquiring, store.WithProgress(5)))
}

func TestJob_ResetLeavesTerminalJobsAlone(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob("https://videos.example.edu/lectures/react-01")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJobStage(ctx, job.ID, models.StageCompleted, store.WithProgress(100)))

	err := s.ResetJob(ctx, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageCompleted, got.Stage)
}

func TestJob_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateJob(ctx, newJob("https://videos.example.edu/"+uuid.NewString()[:8])))
	}

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, jobs, 3)
}

func TestJob_ListFilterByStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	ok := newJob("https://videos.example.edu/ok")
	require.NoError(t, s.CreateJob(ctx, ok))

	bad := newJob("https://videos.example.edu/bad")
	require.NoError(t, s.CreateJob(ctx, bad))
	require.NoError(t, s.UpdateJobStage(ctx, bad.ID, models.StageFailed,
		store.WithErrorMessage("download failed")))

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{Status: models.JobStatusFailed, Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, bad.ID, jobs[0].ID)
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
