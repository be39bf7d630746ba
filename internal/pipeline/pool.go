package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/clipminer/pkg/models"
)

var (
	// ErrQueueFull means the job was accepted into the store but cannot be
	// dispatched right now. Callers surface this as backpressure.
	ErrQueueFull = errors.New("job queue is full")

	// ErrQueueClosed means the pool is draining and takes no more work.
	ErrQueueClosed = errors.New("job queue is closed")
)

// JobRunner executes one job to a terminal state.
type JobRunner interface {
	Process(job *models.Job)
}

// Pool dispatches queued jobs to a fixed set of workers. The queue is
// bounded; a full queue rejects instead of blocking the caller.
type Pool struct {
	runner  JobRunner
	queue   chan *models.Job
	workers int

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(runner JobRunner, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		runner:  runner,
		queue:   make(chan *models.Job, queueSize),
		workers: workers,
	}
}

// Start launches the workers. Cancelling ctx stops them from picking up
// further jobs; a job already being processed always runs to its terminal
// state.
func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	slog.Info("pipeline pool started", "workers", p.workers, "queue_size", cap(p.queue))
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			slog.Info("job dispatched", "worker", id, "job_id", job.ID)
			p.runner.Process(job)
		}
	}
}

// Enqueue hands a job to the pool without blocking.
func (p *Pool) Enqueue(job *models.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain stops intake and waits for queued and in-flight jobs to finish,
// up to timeout. Jobs still queued when the timeout hits stay pending in
// the store and are recovered on the next boot.
func (p *Pool) Drain(timeout time.Duration) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("pipeline pool drained")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("pool drain timed out after %s", timeout)
	}
}
