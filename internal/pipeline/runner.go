// Package pipeline owns job execution. A fixed worker pool feeds a Runner
// that drives each job through the mining stages, strictly in order, until
// the job reaches a terminal state. Every outcome lands in the job record;
// Process never returns an error to its caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/clipminer/internal/analyze"
	"github.com/kiranshivaraju/clipminer/internal/checkpoint"
	"github.com/kiranshivaraju/clipminer/internal/extract"
	"github.com/kiranshivaraju/clipminer/internal/progress"
	"github.com/kiranshivaraju/clipminer/internal/publish"
	"github.com/kiranshivaraju/clipminer/internal/store"
	"github.com/kiranshivaraju/clipminer/internal/timeline"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// Cached progress snapshots outlive the in-memory stream so the API can
// still answer reads shortly after a job settles.
const progressTTL = 30 * time.Minute

// Acquirer resolves a job's source into a local video file.
type Acquirer interface {
	Acquire(ctx context.Context, job *models.Job) (string, error)
}

// AudioExtractor pulls the audio track out of a video container.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, outDir, baseName string) (string, error)
}

// Splitter cuts extracted audio into transcription windows.
type Splitter interface {
	Split(ctx context.Context, audioPath string, durationSecs int) ([]models.AudioChunk, error)
}

// Analyzer runs the transcript and classification passes over a job's chunks.
type Analyzer interface {
	TranscribeChunks(ctx context.Context, chunks []models.AudioChunk, obs analyze.Observer) ([]models.ChunkTranscript, error)
	AnalyzeChunks(ctx context.Context, chunks []models.AudioChunk, transcripts []models.ChunkTranscript, obs analyze.Observer) ([]models.ChunkAnalysis, error)
}

// Extractor materializes timeline entries as clips cut from the source video.
type Extractor interface {
	Cut(ctx context.Context, src string, tl timeline.Timeline, outDir string) (extract.Result, error)
}

// Publisher uploads clips and disposes of local intermediates.
type Publisher interface {
	Publish(ctx context.Context, artifacts []models.SegmentArtifact, intermediates []string) (publish.Result, error)
}

// ProgressSink persists point-in-time progress snapshots for API reads.
type ProgressSink interface {
	SetJobProgress(ctx context.Context, jobID uuid.UUID, update models.ProgressUpdate, ttl time.Duration) error
}

// JobStore is the slice of the data layer the runner writes through.
type JobStore interface {
	UpdateJobStage(ctx context.Context, id uuid.UUID, stage string, opts ...store.JobUpdateOption) error
}

// Deps collects the collaborators a Runner needs.
type Deps struct {
	Store       JobStore
	Cache       ProgressSink
	Hub         *progress.Hub
	Checkpoints *checkpoint.Store
	Acquirer    Acquirer
	Audio       AudioExtractor
	Splitter    Splitter
	Analyzer    Analyzer
	Extractor   Extractor
	Publisher   Publisher
	WorkDir     string
}

// Runner executes one job at a time from start to terminal state.
type Runner struct {
	store       JobStore
	cache       ProgressSink
	hub         *progress.Hub
	checkpoints *checkpoint.Store
	acquirer    Acquirer
	audio       AudioExtractor
	splitter    Splitter
	analyzer    Analyzer
	extractor   Extractor
	publisher   Publisher
	workDir     string
}

func NewRunner(deps Deps) *Runner {
	return &Runner{
		store:       deps.Store,
		cache:       deps.Cache,
		hub:         deps.Hub,
		checkpoints: deps.Checkpoints,
		acquirer:    deps.Acquirer,
		audio:       deps.Audio,
		splitter:    deps.Splitter,
		analyzer:    deps.Analyzer,
		extractor:   deps.Extractor,
		publisher:   deps.Publisher,
		workDir:     deps.WorkDir,
	}
}

// Stage progress bands. A stage opens at its lower bound and its sub-steps
// interpolate toward the upper bound, so reported progress only ever moves
// forward.
type band struct{ lo, hi int }

var stageBands = map[string]band{
	models.StageAcquiring:          {5, 15},
	models.StageExtractingAudio:    {15, 30},
	models.StageChunking:           {30, 40},
	models.StageTranscribing:       {40, 70},
	models.StageAnalyzing:          {70, 85},
	models.StageExtractingSegments: {85, 95},
	models.StagePublishing:         {95, 100},
}

func interpolate(stage string, done, total int) int {
	b := stageBands[stage]
	if total <= 0 || done >= total {
		return b.hi
	}
	return b.lo + (b.hi-b.lo)*done/total
}

// Process drives job to a terminal state. Jobs are never cancelled once
// started, so execution deliberately ignores the caller's lifetime; a panic
// anywhere in the pipeline fails the job instead of the worker.
func (r *Runner) Process(job *models.Job) {
	w := &run{r: r, ctx: context.Background(), job: job, stage: job.Stage}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic while processing job", "job_id", job.ID, "panic", rec)
			w.fail(fmt.Sprintf("internal error: %v", rec))
		}
	}()
	w.execute()
}

// jobState carries the intermediates a job accumulates across stages.
type jobState struct {
	videoPath   string
	audioPath   string
	segmentsDir string
	chunks      []models.AudioChunk
	transcripts []models.ChunkTranscript
	tl          timeline.Timeline
	cut         extract.Result
}

// run is the per-job execution scope.
type run struct {
	r     *Runner
	ctx   context.Context
	job   *models.Job
	st    jobState
	stage string
	pct   int
}

func (w *run) execute() {
	slog.Info("job started",
		"job_id", w.job.ID,
		"source_kind", w.job.SourceKind,
		"chunk_secs", w.job.ChunkDuration)

	resumeAt := w.restore()

	if resumeAt == "" {
		if !w.acquire() || !w.extractAudio() || !w.chunk() || !w.transcribe() {
			return
		}
		w.saveCheckpoint(models.StageTranscribing)
	}
	if resumeAt != models.StagePublishing {
		if !w.analyze() || !w.extractSegments() {
			return
		}
		w.saveCheckpoint(models.StageExtractingSegments)
	}
	w.publish()
}

// restore loads a prior checkpoint for the job's source and returns the
// stage to resume at, or "" for a fresh run. Unreadable records, records at
// an unexpected stage and records whose files have vanished are discarded
// so the job starts over cleanly.
func (w *run) restore() string {
	rec, err := w.r.checkpoints.Load(w.job.Source)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		return ""
	case err != nil:
		slog.Warn("discarding unreadable checkpoint", "job_id", w.job.ID, "error", err)
		_ = w.r.checkpoints.Delete(w.job.Source)
		return ""
	}

	if missing := rec.MissingFiles(); len(missing) > 0 {
		slog.Warn("checkpoint references vanished files, restarting",
			"job_id", w.job.ID, "missing", len(missing))
		_ = w.r.checkpoints.Delete(w.job.Source)
		return ""
	}

	w.st.videoPath = rec.Resume.VideoPath
	w.st.chunks = rec.Resume.Chunks
	w.st.transcripts = rec.Resume.Transcripts

	switch rec.Stage {
	case models.StageTranscribing:
		slog.Info("resuming after transcription checkpoint",
			"job_id", w.job.ID, "transcripts", len(rec.Resume.Transcripts))
		return models.StageAnalyzing
	case models.StageExtractingSegments:
		if rec.Resume.Timeline != nil {
			w.st.tl = *rec.Resume.Timeline
		}
		w.st.cut = extract.Result{Artifacts: rec.Resume.Artifacts, FailedCuts: rec.Resume.FailedCuts}
		if len(rec.Resume.Artifacts) > 0 {
			w.st.segmentsDir = segmentsRoot(rec.Resume.Artifacts[0])
		}
		slog.Info("resuming after extraction checkpoint",
			"job_id", w.job.ID, "clips", len(rec.Resume.Artifacts))
		return models.StagePublishing
	default:
		slog.Warn("checkpoint at unexpected stage, restarting", "job_id", w.job.ID, "stage", rec.Stage)
		_ = w.r.checkpoints.Delete(w.job.Source)
		w.st = jobState{}
		return ""
	}
}

func (w *run) acquire() bool {
	w.advance(models.StageAcquiring, "fetching source video")
	videoPath, err := w.r.acquirer.Acquire(w.ctx, w.job)
	if err != nil {
		w.fail(fmt.Sprintf("acquisition failed: %v", err))
		return false
	}
	w.st.videoPath = videoPath
	return true
}

func (w *run) extractAudio() bool {
	w.advance(models.StageExtractingAudio, "extracting audio track")
	audioPath, err := w.r.audio.ExtractAudio(w.ctx, w.st.videoPath, w.r.workDir, w.job.ID.String())
	if err != nil {
		w.fail(fmt.Sprintf("audio extraction failed: %v", err))
		return false
	}
	w.st.audioPath = audioPath
	return true
}

func (w *run) chunk() bool {
	w.advance(models.StageChunking, "splitting audio into chunks")
	chunks, err := w.r.splitter.Split(w.ctx, w.st.audioPath, w.job.ChunkDuration)
	if err != nil {
		w.fail(fmt.Sprintf("chunking failed: %v", err))
		return false
	}
	w.st.chunks = chunks
	w.step(stageBands[models.StageChunking].hi, fmt.Sprintf("prepared %d chunks", len(chunks)))
	return true
}

func (w *run) transcribe() bool {
	w.advance(models.StageTranscribing, fmt.Sprintf("transcribing %d chunks", len(w.st.chunks)))
	transcripts, err := w.r.analyzer.TranscribeChunks(w.ctx, w.st.chunks, func(done, total int) {
		w.step(interpolate(models.StageTranscribing, done, total),
			fmt.Sprintf("transcribed %d/%d chunks", done, total))
	})
	if err != nil {
		w.fail(fmt.Sprintf("transcription failed: %v", err))
		return false
	}
	w.st.transcripts = transcripts
	return true
}

func (w *run) analyze() bool {
	w.advance(models.StageAnalyzing, fmt.Sprintf("classifying %d transcripts", len(w.st.transcripts)))
	analyses, err := w.r.analyzer.AnalyzeChunks(w.ctx, w.st.chunks, w.st.transcripts, func(done, total int) {
		w.step(interpolate(models.StageAnalyzing, done, total),
			fmt.Sprintf("classified %d/%d transcripts", done, total))
	})
	if err != nil {
		w.fail(fmt.Sprintf("analysis failed: %v", err))
		return false
	}
	w.st.tl = timeline.Reconcile(analyses, w.job.ChunkDuration)
	w.step(stageBands[models.StageAnalyzing].hi,
		fmt.Sprintf("timeline ready: %d topics, %d interactions", len(w.st.tl.Topics), len(w.st.tl.Interactions)))
	return true
}

func (w *run) extractSegments() bool {
	total := len(w.st.tl.Topics) + len(w.st.tl.Interactions)
	w.advance(models.StageExtractingSegments, fmt.Sprintf("cutting %d clips", total))
	w.st.segmentsDir = filepath.Join(w.r.workDir, w.job.ID.String()+"_segments")
	cut, err := w.r.extractor.Cut(w.ctx, w.st.videoPath, w.st.tl, w.st.segmentsDir)
	if err != nil {
		w.fail(fmt.Sprintf("segment extraction failed: %v", err))
		return false
	}
	w.st.cut = cut
	w.step(stageBands[models.StageExtractingSegments].hi,
		fmt.Sprintf("cut %d clips, %d failed", len(cut.Artifacts), len(cut.FailedCuts)))
	return true
}

func (w *run) publish() {
	w.advance(models.StagePublishing, fmt.Sprintf("uploading %d clips", len(w.st.cut.Artifacts)))
	pub, err := w.r.publisher.Publish(w.ctx, w.st.cut.Artifacts, w.intermediates())
	if err != nil {
		w.fail(fmt.Sprintf("publishing failed: %v", err))
		return
	}
	w.complete(&models.JobResult{
		Timeline:              w.st.tl.Entries(),
		Artifacts:             pub.Artifacts,
		ChunkCount:            len(w.st.chunks),
		TranscribedChunks:     len(w.st.transcripts),
		FailedCuts:            w.st.cut.FailedCuts,
		FailedUploads:         pub.FailedUploads,
		IntermediatesRetained: pub.IntermediatesRetained,
	})
}

// intermediates lists the local files the publisher may delete once at
// least one upload lands. A file-kind source is the caller's own file, not
// a download of ours, so it is never put up for deletion.
func (w *run) intermediates() []string {
	var paths []string
	if w.st.videoPath != "" && w.job.SourceKind != models.SourceKindFile {
		paths = append(paths, w.st.videoPath)
	}
	if w.st.audioPath != "" {
		paths = append(paths, w.st.audioPath)
	}
	for _, c := range w.st.chunks {
		paths = append(paths, c.Path)
	}
	if w.st.segmentsDir != "" {
		paths = append(paths, w.st.segmentsDir)
	}
	return paths
}

func (w *run) saveCheckpoint(stage string) {
	rec := checkpoint.Record{
		Source: w.job.Source,
		Stage:  stage,
		Resume: checkpoint.ResumeData{
			VideoPath:   w.st.videoPath,
			Chunks:      w.st.chunks,
			Transcripts: w.st.transcripts,
		},
	}
	if stage == models.StageExtractingSegments {
		tl := w.st.tl
		rec.Resume.Timeline = &tl
		rec.Resume.Artifacts = w.st.cut.Artifacts
		rec.Resume.FailedCuts = w.st.cut.FailedCuts
	}
	if err := w.r.checkpoints.Save(rec); err != nil {
		slog.Warn("could not save checkpoint", "job_id", w.job.ID, "stage", stage, "error", err)
	}
}

// advance moves the job into stage, reporting the band's lower bound.
func (w *run) advance(stage, message string) {
	w.stage = stage
	if lo := stageBands[stage].lo; lo > w.pct {
		w.pct = lo
	}
	w.persist(message, nil)
}

// step reports sub-step completion inside the current stage.
func (w *run) step(pct int, message string) {
	if pct > w.pct {
		w.pct = pct
	}
	w.persist(message, nil)
}

func (w *run) complete(result *models.JobResult) {
	w.stage = models.StageCompleted
	w.pct = 100
	w.persist("job completed", result)
	if err := w.r.checkpoints.Delete(w.job.Source); err != nil {
		slog.Warn("could not remove checkpoint", "job_id", w.job.ID, "error", err)
	}
	w.r.hub.Complete(w.job.ID)
	slog.Info("job completed",
		"job_id", w.job.ID,
		"clips", len(result.Artifacts),
		"failed_cuts", len(result.FailedCuts),
		"failed_uploads", len(result.FailedUploads))
}

// fail marks the job failed, keeping any checkpoint so a resubmission of
// the same source can pick up where this run stopped.
func (w *run) fail(msg string) {
	slog.Error("job failed", "job_id", w.job.ID, "stage", w.stage, "error", msg)
	w.stage = models.StageFailed
	if err := w.r.store.UpdateJobStage(w.ctx, w.job.ID, models.StageFailed, store.WithErrorMessage(msg)); err != nil {
		slog.Warn("could not persist job failure", "job_id", w.job.ID, "error", err)
	}
	w.broadcast("job failed", nil, msg)
	w.r.hub.Complete(w.job.ID)
}

// persist writes the job's stage and progress through the store, then fans
// the update out. Store and cache write failures are logged and swallowed;
// losing a progress tick must not stop the pipeline.
func (w *run) persist(message string, result *models.JobResult) {
	opts := []store.JobUpdateOption{store.WithProgress(w.pct)}
	if result != nil {
		opts = append(opts, store.WithResult(result))
	}
	if err := w.r.store.UpdateJobStage(w.ctx, w.job.ID, w.stage, opts...); err != nil {
		slog.Warn("could not persist job stage", "job_id", w.job.ID, "stage", w.stage, "error", err)
	}
	w.broadcast(message, result, "")
}

func (w *run) broadcast(message string, result *models.JobResult, errMsg string) {
	update := models.ProgressUpdate{
		JobID:     w.job.ID,
		Status:    models.StatusForStage(w.stage),
		Stage:     w.stage,
		Message:   message,
		Progress:  w.pct,
		Timestamp: time.Now().UTC(),
		Result:    result,
		Error:     errMsg,
	}
	if err := w.r.cache.SetJobProgress(w.ctx, w.job.ID, update, progressTTL); err != nil {
		slog.Warn("could not cache job progress", "job_id", w.job.ID, "error", err)
	}
	w.r.hub.Publish(w.job.ID, update)
}

// segmentsRoot recovers the clip directory from an artifact path, stepping
// out of the interactions subdirectory when needed.
func segmentsRoot(a models.SegmentArtifact) string {
	dir := filepath.Dir(a.LocalPath)
	if filepath.Base(dir) == extract.InteractionsSubdir {
		dir = filepath.Dir(dir)
	}
	return dir
}
