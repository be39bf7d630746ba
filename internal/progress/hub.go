// Package progress fans per-job pipeline updates out to transient
// subscribers such as SSE connections.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/clipminer/pkg/models"
)

const (
	subscriberBuffer = 16
	completedTTL     = 5 * time.Minute
)

// Hub fans updates out to whoever is watching a job. Sends never block: a
// subscriber that stops draining misses intermediate updates, and the next
// update or heartbeat carries the latest state instead.
type Hub struct {
	mu        sync.RWMutex
	heartbeat time.Duration
	streams   map[uuid.UUID]*stream
}

type stream struct {
	last      models.ProgressUpdate
	hasLast   bool
	completed bool
	nextID    int
	subs      map[int]chan models.ProgressUpdate
	stop      chan struct{}
}

// NewHub creates a hub that re-emits each live job's latest update every
// heartbeat interval.
func NewHub(heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = 10 * time.Second
	}
	return &Hub{
		heartbeat: heartbeat,
		streams:   make(map[uuid.UUID]*stream),
	}
}

// Publish records jobID's latest state and pushes it to every subscriber,
// stamping the job id and timestamp. Updates for a completed job are
// dropped.
func (h *Hub) Publish(jobID uuid.UUID, u models.ProgressUpdate) {
	u.JobID = jobID
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.streamLocked(jobID)
	if st.completed {
		return
	}
	st.last = u
	st.hasLast = true
	for _, ch := range st.subs {
		send(ch, u)
	}
}

// Subscribe attaches to jobID's stream, replaying the latest update first.
// The returned cancel detaches the subscriber; callers must invoke it.
// Subscribing to a completed job yields the final update on an already
// closed channel.
func (h *Hub) Subscribe(jobID uuid.UUID) (<-chan models.ProgressUpdate, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.streamLocked(jobID)
	ch := make(chan models.ProgressUpdate, subscriberBuffer)
	if st.hasLast {
		ch <- st.last
	}
	if st.completed {
		close(ch)
		return ch, func() {}
	}

	id := st.nextID
	st.nextID++
	st.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := st.subs[id]; !ok {
			return
		}
		delete(st.subs, id)
		close(ch)
		if len(st.subs) == 0 && !st.completed && !st.hasLast {
			// Nothing was ever published; drop the stream so a watch on a
			// job that never starts does not linger.
			close(st.stop)
			delete(h.streams, jobID)
		}
	}
	return ch, cancel
}

// Complete seals jobID's stream: subscriber channels close, heartbeats stop,
// and the final state stays replayable for a retention window.
func (h *Hub) Complete(jobID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.streams[jobID]
	if !ok || st.completed {
		return
	}
	st.completed = true
	close(st.stop)
	for id, ch := range st.subs {
		delete(st.subs, id)
		close(ch)
	}

	time.AfterFunc(completedTTL, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.streams, jobID)
	})
}

// streamLocked returns jobID's stream, creating it and starting its
// heartbeat on first use. Caller holds h.mu.
func (h *Hub) streamLocked(jobID uuid.UUID) *stream {
	st, ok := h.streams[jobID]
	if !ok {
		st = &stream{
			subs: make(map[int]chan models.ProgressUpdate),
			stop: make(chan struct{}),
		}
		h.streams[jobID] = st
		go h.heartbeatLoop(st)
	}
	return st
}

func (h *Hub) heartbeatLoop(st *stream) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			h.mu.RLock()
			if st.hasLast && !st.completed {
				for _, ch := range st.subs {
					send(ch, st.last)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// send delivers without blocking; a full subscriber drops the update.
func send(ch chan models.ProgressUpdate, u models.ProgressUpdate) {
	select {
	case ch <- u:
	default:
	}
}
