package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
)

// TradeJobPublisher enqueues trade jobs on a Kafka topic, keyed by subnet.
type TradeJobPublisher struct {
	writer  messageWriter
	metrics *metrics.JobMetrics
}

var _ domain.TradeJobQueue = (*TradeJobPublisher)(nil)

func NewTradeJobPublisher(brokers []string, topic string, m *metrics.JobMetrics) *TradeJobPublisher {
	return &TradeJobPublisher{writer: newWriter(brokers, topic), metrics: m}
}

func (p *TradeJobPublisher) Enqueue(ctx context.Context, job domain.TradeJob) error {
	value, err := json.Marshal(job)
	if err != nil {
		p.metrics.Enqueued.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal trade job: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(job.SubnetID), 10)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.Enqueued.WithLabelValues("error").Inc()
		return fmt.Errorf("kafka write: %w", err)
	}

	p.metrics.Enqueued.WithLabelValues("ok").Inc()
	return nil
}

func (p *TradeJobPublisher) Close() error {
	return p.writer.Close()
}

// TradeJobConsumer reads trade jobs as part of a consumer group. ReadMessage
// commits the offset before the job runs, so a crash mid-job loses that job
// rather than running it twice.
type TradeJobConsumer struct {
	reader  messageReader
	workers int

	// Read failures back off from minBackoff, doubling up to maxBackoff.
	minBackoff time.Duration
	maxBackoff time.Duration
}

const (
	defaultMinReadBackoff = 500 * time.Millisecond
	defaultMaxReadBackoff = 30 * time.Second
)

func NewTradeJobConsumer(brokers []string, groupID, topic string, workers int) *TradeJobConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	if workers < 1 {
		workers = 1
	}
	return &TradeJobConsumer{
		reader:     reader,
		workers:    workers,
		minBackoff: defaultMinReadBackoff,
		maxBackoff: defaultMaxReadBackoff,
	}
}

// Run consumes until ctx ends or the reader is closed, handing each job to one
// of the workers. Read failures are logged and retried with backoff. It
// returns after every started job has finished.
func (c *TradeJobConsumer) Run(ctx context.Context, handler domain.TradeJobHandler) error {
	jobs := make(chan domain.TradeJob)
	var wg sync.WaitGroup
	for range c.workers {
		wg.Go(func() {
			for job := range jobs {
				handler(ctx, job)
			}
		})
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	minBackoff, maxBackoff := c.minBackoff, c.maxBackoff
	if minBackoff <= 0 {
		minBackoff = defaultMinReadBackoff
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}

	backoff := minBackoff
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			slog.Warn("Trade job read failed, retrying", "error", err, "backoff", backoff)
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		var job domain.TradeJob
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			slog.Warn("Skipping undecodable trade job", "offset", msg.Offset, "partition", msg.Partition, "error", err)
			continue
		}

		select {
		case jobs <- job:
		case <-ctx.Done():
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *TradeJobConsumer) Close() error {
	return c.reader.Close()
}
