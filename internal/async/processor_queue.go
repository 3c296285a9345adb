package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/eps-docsorter/internal/common"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")

// Processor runs one job; pipeline.Service satisfies it.
type Processor interface {
	Process(ctx context.Context, inputPath, payerName string) error
}

// ProcessorQueue runs jobs on a fixed set of workers. With one worker (the
// default) runs never overlap, which the pipeline relies on when two jobs
// target the same tree. A job for a path that is already waiting is dropped.
type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// base parents every run; Shutdown cancels it when its deadline passes.
	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}
	quit    chan struct{}  // closed by Shutdown; wakes blocked senders
	senders sync.WaitGroup // Enqueue calls between the closed check and the send
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 1,
		timeout: 2 * time.Hour,
		ch:      make(chan Job, 64),
		pending: make(map[string]struct{}),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.base, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	if job.Done == nil {
		q.mu.Lock()
		delete(q.pending, job.InputPath)
		q.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRunID(ctx, job.TraceID)
	}

	start := time.Now()
	err := q.proc.Process(ctx, job.InputPath, job.Payer)
	if job.Done != nil {
		job.Done <- err
	}
	if err != nil {
		q.logger.Error("run failed", "worker_id", workerID, "input_path", job.InputPath, "payer", job.Payer, "error", err)
		return
	}
	q.logger.Info("run finished",
		"worker_id", workerID,
		"input_path", job.InputPath,
		"payer", job.Payer,
		"waited_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue blocks while the queue is full, until ctx ends or Shutdown starts.
// The lock is not held while waiting for a slot.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "input_path", job.InputPath)
		return ErrClosed
	}
	track := job.Done == nil
	if track {
		if _, dup := q.pending[job.InputPath]; dup {
			q.mu.Unlock()
			q.logger.Debug("run already queued", "input_path", job.InputPath)
			return nil
		}
		// Recorded before the send so the worker's delete always comes after it.
		q.pending[job.InputPath] = struct{}{}
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued run", "input_path", job.InputPath, "payer", job.Payer)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "input_path", job.InputPath)
	var err error
	select {
	case q.ch <- job:
		q.logger.Info("queued run", "input_path", job.InputPath, "payer", job.Payer)
		return nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-q.quit:
		err = ErrClosed
	}
	if track {
		q.mu.Lock()
		delete(q.pending, job.InputPath)
		q.mu.Unlock()
	}
	return err
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	// No new senders can start; wait out the ones in flight before closing ch.
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown deadline passed, cancelling running jobs")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
	q.cancel()
}
