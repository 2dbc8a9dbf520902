// Package queue runs trade jobs in-process when no Kafka brokers are configured.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
)

var ErrQueueClosed = errors.New("trade job queue closed")

// LocalQueue is a bounded channel drained by a fixed set of workers. Enqueue
// never blocks: a full buffer drops the job with domain.ErrQueueFull.
type LocalQueue struct {
	jobs    chan domain.TradeJob
	workers int
	handler domain.TradeJobHandler
	metrics *metrics.JobMetrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ domain.TradeJobQueue = (*LocalQueue)(nil)

func NewLocalQueue(size, workers int, handler domain.TradeJobHandler, m *metrics.JobMetrics) *LocalQueue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &LocalQueue{
		jobs:    make(chan domain.TradeJob, size),
		workers: workers,
		handler: handler,
		metrics: m,
	}
}

func (q *LocalQueue) Start() {
	for range q.workers {
		q.wg.Go(q.work)
	}
}

func (q *LocalQueue) work() {
	for job := range q.jobs {
		q.handler(context.Background(), job)
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, job domain.TradeJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.metrics.Enqueued.WithLabelValues("error").Inc()
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.metrics.Enqueued.WithLabelValues("ok").Inc()
		return nil
	default:
		q.metrics.Enqueued.WithLabelValues("dropped").Inc()
		slog.WarnContext(ctx, "Trade job queue full, dropping job", "job_id", job.ID, "netuid", job.SubnetID)
		return domain.ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued and running jobs to finish, or for ctx to end.
func (q *LocalQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("trade queue drain interrupted: %w", ctx.Err())
	}
}
