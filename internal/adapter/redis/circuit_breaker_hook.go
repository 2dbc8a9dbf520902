package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
)

// ErrBreakerOpen is returned for commands rejected while the breaker is open.
var ErrBreakerOpen = fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)

// CircuitBreakerHook fails Redis commands fast once Redis looks down. The
// resolver treats a failed GET as a cache miss and a failed SET as a logged
// no-op, so an open breaker degrades to ledger-only reads instead of stacking
// up timeouts on every request.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// BreakerSettings tunes the breaker. Zero values fall back to the defaults.
type BreakerSettings struct {
	FailureThreshold uint
	Delay            time.Duration
	SuccessThreshold uint
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.Delay == 0 {
		s.Delay = 30 * time.Second
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 1
	}
	return s
}

func NewCircuitBreakerHook(settings BreakerSettings, m *metrics.RedisMetrics) *CircuitBreakerHook {
	settings = settings.withDefaults()

	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(settings.FailureThreshold).
		WithDelay(settings.Delay).
		WithSuccessThreshold(settings.SuccessThreshold).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			level := slog.LevelWarn
			if e.NewState == circuitbreaker.ClosedState {
				level = slog.LevelInfo
			}
			slog.Log(context.Background(), level, "Dividend cache circuit breaker changed state",
				"from", e.OldState.String(), "to", e.NewState.String())
			if m != nil {
				m.BreakerStateChanges.WithLabelValues(e.NewState.String()).Inc()
				m.BreakerState.Set(stateGauge(e.NewState))
			}
		}).
		Build()

	return &CircuitBreakerHook{cb: cb}
}

// stateGauge encodes the state for the breaker gauge: 0 closed, 1 half-open, 2 open.
func stateGauge(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// isRedisFailure reports whether err says something about Redis health. A
// nil reply is an ordinary miss and a cancelled caller says nothing about
// the server.
func isRedisFailure(err error) bool {
	return err != nil && !errors.Is(err, goredis.Nil) && !errors.Is(err, context.Canceled)
}

// guard runs op if the breaker admits it and records the outcome.
func (h *CircuitBreakerHook) guard(op func() error) error {
	if !h.cb.TryAcquirePermit() {
		return ErrBreakerOpen
	}
	err := op()
	if isRedisFailure(err) {
		h.cb.RecordError(err)
	} else {
		h.cb.RecordSuccess()
	}
	return err
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var conn net.Conn
		err := h.guard(func() (err error) {
			conn, err = next(ctx, network, addr)
			return err
		})
		return conn, err
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := h.guard(func() error { return next(ctx, cmd) })
		if errors.Is(err, ErrBreakerOpen) {
			cmd.SetErr(err)
		}
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		err := h.guard(func() error { return next(ctx, cmds) })
		if errors.Is(err, ErrBreakerOpen) {
			for _, cmd := range cmds {
				cmd.SetErr(err)
			}
		}
		return err
	}
}

func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}
