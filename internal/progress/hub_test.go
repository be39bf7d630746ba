package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/clipminer/pkg/models"
)

func recvUpdate(t *testing.T, ch <-chan models.ProgressUpdate) models.ProgressUpdate {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatal("channel closed while awaiting update")
		}
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out awaiting update")
	}
	return models.ProgressUpdate{}
}

// drainUntilClosed consumes remaining updates and returns once the channel
// closes.
func drainUntilClosed(t *testing.T, ch <-chan models.ProgressUpdate) {
	t.Helper()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("timed out awaiting close")
		}
	}
}

func TestSubscribeReplaysLatestUpdate(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageAcquiring, Status: models.JobStatusRunning, Progress: 5})
	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageChunking, Status: models.JobStatusRunning, Progress: 30})

	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	got := recvUpdate(t, ch)
	if got.Stage != models.StageChunking || got.Progress != 30 {
		t.Errorf("replayed update = %+v, want the latest one", got)
	}
}

func TestPublishReachesLiveSubscribers(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	first, cancelFirst := hub.Subscribe(jobID)
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe(jobID)
	defer cancelSecond()

	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageTranscribing, Progress: 45, Message: "chunk 2/4"})

	for _, ch := range []<-chan models.ProgressUpdate{first, second} {
		got := recvUpdate(t, ch)
		if got.Progress != 45 || got.Message != "chunk 2/4" {
			t.Errorf("update = %+v, want progress 45", got)
		}
	}
}

func TestPublishStampsJobIDAndTimestamp(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageAcquiring})

	got := recvUpdate(t, ch)
	if got.JobID != jobID {
		t.Errorf("job id = %s, want %s", got.JobID, jobID)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not set on publish")
	}
}

func TestUpdatesAreIsolatedPerJob(t *testing.T) {
	hub := NewHub(time.Minute)
	watched, other := uuid.New(), uuid.New()

	ch, cancel := hub.Subscribe(watched)
	defer cancel()

	hub.Publish(other, models.ProgressUpdate{Stage: models.StagePublishing, Progress: 95})
	hub.Publish(watched, models.ProgressUpdate{Stage: models.StageAcquiring, Progress: 5})

	got := recvUpdate(t, ch)
	if got.Stage != models.StageAcquiring {
		t.Errorf("stage = %s, leaked update from another job", got.Stage)
	}
}

func TestCancelDetaches(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageAcquiring})
	ch, cancel := hub.Subscribe(jobID)
	recvUpdate(t, ch)

	cancel()
	drainUntilClosed(t, ch)

	// Publishing after detach must not panic or block.
	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageChunking})
	cancel()
}

func TestCompleteClosesSubscribers(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageCompleted, Status: models.JobStatusCompleted, Progress: 100})
	hub.Complete(jobID)

	got := recvUpdate(t, ch)
	if got.Progress != 100 {
		t.Errorf("final update progress = %d, want 100", got.Progress)
	}
	drainUntilClosed(t, ch)
}

func TestSubscribeAfterCompleteReplaysFinalState(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	hub.Publish(jobID, models.ProgressUpdate{
		Stage:    models.StageCompleted,
		Status:   models.JobStatusCompleted,
		Progress: 100,
		Result:   &models.JobResult{ChunkCount: 3},
	})
	hub.Complete(jobID)

	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	got := recvUpdate(t, ch)
	if got.Result == nil || got.Result.ChunkCount != 3 {
		t.Errorf("final update = %+v, want the completed result", got)
	}
	drainUntilClosed(t, ch)
}

func TestPublishAfterCompleteIsDropped(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageCompleted, Progress: 100})
	hub.Complete(jobID)
	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageAcquiring, Progress: 5})

	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	got := recvUpdate(t, ch)
	if got.Progress != 100 {
		t.Errorf("replayed progress = %d, want the sealed final state", got.Progress)
	}
}

func TestHeartbeatReemitsLatest(t *testing.T) {
	hub := NewHub(10 * time.Millisecond)
	jobID := uuid.New()

	hub.Publish(jobID, models.ProgressUpdate{Stage: models.StageTranscribing, Progress: 50})

	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	// Replay first, then at least one heartbeat copy of the same state.
	recvUpdate(t, ch)
	beat := recvUpdate(t, ch)
	if beat.Stage != models.StageTranscribing || beat.Progress != 50 {
		t.Errorf("heartbeat = %+v, want re-emission of the latest update", beat)
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+8; i++ {
			hub.Publish(jobID, models.ProgressUpdate{Progress: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	if buffered := len(ch); buffered > subscriberBuffer {
		t.Errorf("buffered %d updates, cap is %d", buffered, subscriberBuffer)
	}
}

func TestAbandonedWatchIsReaped(t *testing.T) {
	hub := NewHub(time.Minute)
	jobID := uuid.New()

	_, cancel := hub.Subscribe(jobID)
	cancel()

	hub.mu.RLock()
	_, lingering := hub.streams[jobID]
	hub.mu.RUnlock()
	if lingering {
		t.Error("stream for a never-published job survived its last subscriber")
	}
}
