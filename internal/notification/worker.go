package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Dispatch after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

// Job is one unit of background work.
type Job struct {
	ID   uuid.UUID
	Kind string
	Run  func(ctx context.Context) error
}

// NewJob wraps fn in a job with a fresh id.
func NewJob(kind string, fn func(ctx context.Context) error) Job {
	return Job{ID: uuid.New(), Kind: kind, Run: fn}
}

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Panicked  uint64 `json:"panicked"`
	Dropped   uint64 `json:"dropped"`
}

// WorkerPool runs background jobs on a fixed number of workers. Every failure
// and panic is logged and counted.
type WorkerPool struct {
	size int
	jobs chan Job
	log  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	completed atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	dropped   atomic.Uint64
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size: size,
		jobs: make(chan Job, queueSize), // Buffered channel
		log:  log,
	}
}

// Start launches the worker goroutines. ctx is handed to every job; workers
// themselves stop only when the pool is closed and the queue is drained.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.log.Debug("worker started", zap.Int("worker", id))
	for job := range wp.jobs {
		wp.run(ctx, id, job)
	}
	wp.log.Debug("worker stopped", zap.Int("worker", id))
}

func (wp *WorkerPool) run(ctx context.Context, workerID int, job Job) {
	started := time.Now()
	fields := []zap.Field{
		zap.Int("worker", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", job.Kind),
	}

	defer func() {
		if r := recover(); r != nil {
			wp.panicked.Add(1)
			wp.failed.Add(1)
			wp.log.Error("job panicked", append(fields, zap.Any("panic", r))...)
		}
	}()

	if err := job.Run(ctx); err != nil {
		wp.failed.Add(1)
		wp.log.Warn("job failed", append(fields, zap.Duration("took", time.Since(started)), zap.Error(err))...)
		return
	}
	wp.completed.Add(1)
	wp.log.Debug("job done", append(fields, zap.Duration("took", time.Since(started)))...)
}

// Dispatch queues a job. It blocks while the queue is full until ctx is done,
// in which case the job is dropped.
func (wp *WorkerPool) Dispatch(ctx context.Context, job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		wp.dropped.Add(1)
		return ErrPoolClosed
	}

	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		wp.dropped.Add(1)
		wp.log.Error("job dropped", zap.String("job_id", job.ID.String()), zap.String("kind", job.Kind), zap.Error(ctx.Err()))
		return fmt.Errorf("dispatch %s: %w", job.Kind, ctx.Err())
	}
}

// Close stops accepting jobs. Workers finish what is already queued.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return
	}
	wp.closed = true
	close(wp.jobs)
}

// Wait blocks until every worker has exited or ctx is done.
func (wp *WorkerPool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:   wp.size,
		Queued:    len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
		Panicked:  wp.panicked.Load(),
		Dropped:   wp.dropped.Load(),
	}
}
