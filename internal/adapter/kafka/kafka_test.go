package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
)

type mockWriter struct {
	writeFn func(ctx context.Context, msgs ...kafka.Message) error
	written []kafka.Message
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.written = append(m.written, msgs...)
	if m.writeFn != nil {
		return m.writeFn(ctx, msgs...)
	}
	return nil
}

func (m *mockWriter) Close() error { return nil }

// mockReader fails with each of errs once, replays msgs, then returns err or
// blocks until the context ends.
type mockReader struct {
	mu    sync.Mutex
	errs  []error
	msgs  []kafka.Message
	err   error
	reads int
}

func (m *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	m.reads++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(m.msgs) > 0 {
		msg := m.msgs[0]
		m.msgs = m.msgs[1:]
		m.mu.Unlock()
		return msg, nil
	}
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return kafka.Message{}, err
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockReader) Close() error { return nil }

func jobMessage(t *testing.T, job domain.TradeJob) kafka.Message {
	t.Helper()
	b, err := json.Marshal(job)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestTradeJobPublisher_Enqueue(t *testing.T) {
	w := &mockWriter{}
	m := metrics.NewJobMetrics(prometheus.NewRegistry())
	p := &TradeJobPublisher{writer: w, metrics: m}

	job := domain.TradeJob{ID: "j1", SubnetID: 18, Hotkey: "hk", CorrelationID: "abcd1234"}
	require.NoError(t, p.Enqueue(context.Background(), job))

	require.Len(t, w.written, 1)
	assert.Equal(t, "18", string(w.written[0].Key))

	var got domain.TradeJob
	require.NoError(t, json.Unmarshal(w.written[0].Value, &got))
	assert.Equal(t, job, got)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Enqueued.WithLabelValues("ok")), 0)
}

func TestTradeJobPublisher_WriteError(t *testing.T) {
	w := &mockWriter{writeFn: func(context.Context, ...kafka.Message) error { return errors.New("no leader") }}
	m := metrics.NewJobMetrics(prometheus.NewRegistry())
	p := &TradeJobPublisher{writer: w, metrics: m}

	err := p.Enqueue(context.Background(), domain.TradeJob{ID: "j1"})
	require.Error(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Enqueued.WithLabelValues("error")), 0)
}

func TestTradeJobConsumer_HandlesJobsAndSkipsGarbage(t *testing.T) {
	r := &mockReader{msgs: []kafka.Message{
		jobMessage(t, domain.TradeJob{ID: "a", SubnetID: 1}),
		{Value: []byte("{not json")},
		jobMessage(t, domain.TradeJob{ID: "b", SubnetID: 2}),
	}}
	c := &TradeJobConsumer{reader: r, workers: 2}

	var mu sync.Mutex
	var seen []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, job domain.TradeJob) {
			mu.Lock()
			seen = append(seen, job.ID)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func (m *mockReader) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func TestTradeJobConsumer_RecoversFromReadErrors(t *testing.T) {
	r := &mockReader{
		errs: []error{errors.New("broker gone"), errors.New("rebalance in progress")},
		msgs: []kafka.Message{jobMessage(t, domain.TradeJob{ID: "after-outage"})},
	}
	c := &TradeJobConsumer{reader: r, workers: 1, minBackoff: time.Millisecond, maxBackoff: 4 * time.Millisecond}

	handled := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, job domain.TradeJob) { handled <- job.ID })
	}()

	select {
	case id := <-handled:
		assert.Equal(t, "after-outage", id)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not resume after read errors")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestTradeJobConsumer_PersistentReadErrorKeepsRetrying(t *testing.T) {
	r := &mockReader{err: errors.New("broker gone")}
	c := &TradeJobConsumer{reader: r, workers: 1, minBackoff: time.Millisecond, maxBackoff: 2 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(context.Context, domain.TradeJob) {}) }()

	require.Eventually(t, func() bool { return r.readCount() >= 3 }, time.Second, time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("consumer stopped on a read error: %v", err)
	default:
	}

	cancel()
	require.NoError(t, <-done)
}

func TestTradeJobConsumer_ClosedReaderEndsRun(t *testing.T) {
	c := &TradeJobConsumer{reader: &mockReader{err: io.EOF}, workers: 1}

	err := c.Run(context.Background(), func(context.Context, domain.TradeJob) {})
	assert.NoError(t, err)
}

func TestStakeActionPublisher_Submit(t *testing.T) {
	w := &mockWriter{}
	p := &StakeActionPublisher{writer: w}

	action := domain.StakeAction{SubnetID: 18, Hotkey: "hk", Direction: domain.StakeRemove, AmountRao: 25_000_000, Sentiment: -25}
	require.NoError(t, p.Submit(context.Background(), action))

	require.Len(t, w.written, 1)
	assert.Equal(t, "hk", string(w.written[0].Key))
	assert.JSONEq(t, `{"netuid":18,"hotkey":"hk","direction":"unstake","amount_rao":25000000,"sentiment":-25}`, string(w.written[0].Value))
}
