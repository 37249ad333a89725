package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
)

// ErrPoolClosed is returned by Dispatch after Stop.
var ErrPoolClosed = errors.New("worker pool is closed")

// Executor runs one job to completion.
type Executor interface {
	Execute(ctx context.Context, jobID string) (*models.Job, error)
}

// Pool executes jobs on a fixed number of goroutines. Dispatch blocks once the
// queue is full.
type Pool struct {
	size     int
	executor Executor
	logger   *slog.Logger

	queue chan string
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewPool(size, queueSize int, executor Executor, logger *slog.Logger) *Pool {
	size = max(size, 1)
	queueSize = max(queueSize, size)

	return &Pool{
		size:     size,
		executor: executor,
		logger:   logger.With("module", "pool"),
		queue:    make(chan string, queueSize),
	}
}

// Size is the number of worker goroutines.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. Jobs run under a context detached from ctx's
// cancellation: once started, a job always reaches a terminal state.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}

	p.started = true
	runCtx := context.WithoutCancel(ctx)

	for i := range p.size {
		p.wg.Add(1)

		go p.work(runCtx, i)
	}

	p.logger.InfoContext(ctx, "Worker pool started", "size", p.size)
}

type workerKey struct{}

// workerFrom returns the pool worker executing under ctx, or "".
func workerFrom(ctx context.Context) string {
	worker, _ := ctx.Value(workerKey{}).(string)

	return worker
}

func (p *Pool) work(ctx context.Context, worker int) {
	defer p.wg.Done()

	ctx = context.WithValue(ctx, workerKey{}, "pool-"+strconv.Itoa(worker))

	for jobID := range p.queue {
		job, err := p.executor.Execute(ctx, jobID)
		if err != nil {
			level := slog.LevelError
			if failure.IsConflict(err) {
				level = slog.LevelWarn
			}

			p.logger.Log(ctx, level, "Job not executed", "worker", worker, "job_id", jobID, "error", err)

			continue
		}

		p.logger.DebugContext(ctx, "Job finished", "worker", worker, "job_id", jobID, "status", job.Status)
	}
}

// Dispatch queues jobID, waiting for room until ctx is done.
func (p *Pool) Dispatch(ctx context.Context, jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new jobs and waits for the queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return
	}

	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}
