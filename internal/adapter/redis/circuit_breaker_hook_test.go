package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
)

func failingProcess(calls *int) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		*calls++
		return errors.New("connection refused")
	}
}

func TestCircuitBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook(BreakerSettings{}, nil)
	ctx := context.Background()

	process := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error { return nil })
	for range 10 {
		require.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "dividend:1:x")))
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_NilReplyIsSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook(BreakerSettings{FailureThreshold: 1}, nil)
	ctx := context.Background()

	process := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error { return goredis.Nil })
	err := process(ctx, goredis.NewStringCmd(ctx, "get", "dividend:1:x"))

	assert.ErrorIs(t, err, goredis.Nil)
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := NewCircuitBreakerHook(BreakerSettings{FailureThreshold: 3, Delay: time.Hour}, m)
	ctx := context.Background()

	calls := 0
	process := hook.ProcessHook(failingProcess(&calls))
	for range 3 {
		assert.Error(t, process(ctx, goredis.NewStringCmd(ctx, "get", "dividend:1:x")))
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	cmd := goredis.NewStringCmd(ctx, "get", "dividend:1:x")
	err := process(ctx, cmd)

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, cmd.Err(), circuitbreaker.ErrOpen)
	assert.Equal(t, 3, calls, "open breaker must not reach redis")
	assert.InDelta(t, 2, testutil.ToFloat64(m.BreakerState), 0)
}

func TestCircuitBreakerHook_PipelineFailsFastWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(BreakerSettings{FailureThreshold: 1, Delay: time.Hour}, nil)
	ctx := context.Background()

	pipeline := hook.ProcessPipelineHook(func(ctx context.Context, cmds []goredis.Cmder) error {
		return errors.New("broken pipe")
	})
	require.Error(t, pipeline(ctx, nil))

	err := pipeline(ctx, nil)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestCircuitBreakerHook_CancelledCallerIsNotAFailure(t *testing.T) {
	hook := NewCircuitBreakerHook(BreakerSettings{FailureThreshold: 1, Delay: time.Hour}, nil)
	ctx := context.Background()

	process := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error { return context.Canceled })
	for range 3 {
		assert.ErrorIs(t, process(ctx, goredis.NewStringCmd(ctx, "get", "dividend:1:x")), context.Canceled)
	}

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_DialFailuresOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(BreakerSettings{FailureThreshold: 2, Delay: time.Hour}, nil)
	ctx := context.Background()

	dials := 0
	dial := hook.DialHook(func(context.Context, string, string) (net.Conn, error) {
		dials++
		return nil, errors.New("connection refused")
	})
	for range 2 {
		_, err := dial(ctx, "tcp", "redis:6379")
		require.Error(t, err)
	}

	_, err := dial(ctx, "tcp", "redis:6379")
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 2, dials)
}

func TestCircuitBreakerHook_PipelineMarksCommandsWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(BreakerSettings{FailureThreshold: 1, Delay: time.Hour}, nil)
	ctx := context.Background()

	pipeline := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error {
		return errors.New("broken pipe")
	})
	require.Error(t, pipeline(ctx, nil))

	cmds := []goredis.Cmder{goredis.NewStringCmd(ctx, "get", "dividend:1:a"), goredis.NewStringCmd(ctx, "get", "dividend:1:b")}
	require.ErrorIs(t, pipeline(ctx, cmds), ErrBreakerOpen)
	for _, cmd := range cmds {
		assert.ErrorIs(t, cmd.Err(), circuitbreaker.ErrOpen)
	}
}
