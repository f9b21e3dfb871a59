package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/core"
	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

// FileProcessor handles one described document.
type FileProcessor interface {
	ProcessFile(ctx context.Context, doc entity.Document) (core.Outcome, error)
}

// Describer turns a path into a hashed document.
type Describer interface {
	DescribePath(ctx context.Context, path string) (entity.Document, error)
}

type ProcessorQueue struct {
	proc     FileProcessor
	describe Describer
	logger   *slog.Logger
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
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

func NewProcessorQueue(proc FileProcessor, describe Describer, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:     proc,
		describe: describe,
		logger:   logger,
		workers:  4,
		timeout:  2 * time.Minute,
		ch:       make(chan Job, 100),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	doc, err := q.describe.DescribePath(ctx, job.Path)
	if err != nil {
		q.logger.Error("queue.describe.failed", "worker_id", workerID, "path", job.Path, "error", err)
		return
	}
	out, err := q.proc.ProcessFile(ctx, doc)
	if err != nil {
		// the processor already logged the failure
		return
	}
	q.logger.Info("queue.job.done",
		"worker_id", workerID,
		"path", job.Path,
		"status", out.Status,
		"order_id", out.OrderID,
		"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
	)
}

// Enqueue blocks while the queue is full until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueue.ok", "path", job.Path)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Feed enqueues every path from the channel until it closes or ctx is done.
func (q *ProcessorQueue) Feed(ctx context.Context, paths <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-paths:
			if !ok {
				return
			}
			if err := q.Enqueue(ctx, Job{Path: p}); err != nil {
				return
			}
		}
	}
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
