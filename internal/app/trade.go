package app

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
	"github.com/vmanilo/paralimni/internal/platform/correlation"
)

type sentimentAggregator interface {
	Aggregate(ctx context.Context, subnetID uint16) (float64, bool)
}

// TradeRunner executes trade jobs: aggregate sentiment, then stake or unstake
// in proportion to it. Failures are logged and never reach the enqueuer.
type TradeRunner struct {
	aggregator   sentimentAggregator
	actuator     domain.StakeActuator
	stakeUnitRao int64
	clock        clockwork.Clock
	metrics      *metrics.JobMetrics
}

func NewTradeRunner(aggregator sentimentAggregator, actuator domain.StakeActuator, stakeUnitRao int64, clock clockwork.Clock, m *metrics.JobMetrics) *TradeRunner {
	return &TradeRunner{
		aggregator:   aggregator,
		actuator:     actuator,
		stakeUnitRao: stakeUnitRao,
		clock:        clock,
		metrics:      m,
	}
}

// Handle is a domain.TradeJobHandler. It detaches from the caller's
// cancellation so a job that started during shutdown runs to completion.
func (t *TradeRunner) Handle(ctx context.Context, job domain.TradeJob) {
	ctx = context.WithoutCancel(ctx)
	if correlation.Accept(job.CorrelationID) {
		ctx = correlation.WithID(ctx, job.CorrelationID)
	} else {
		ctx, _ = correlation.Ensure(ctx)
	}

	start := t.clock.Now()
	defer func() {
		t.metrics.Processed.Inc()
		t.metrics.Duration.Observe(t.clock.Since(start).Seconds())
	}()

	slog.InfoContext(ctx, "Trade job started", "job_id", job.ID, "netuid", job.SubnetID, "queued_for", start.Sub(job.EnqueuedAt).Round(time.Millisecond))

	mean, ok := t.aggregator.Aggregate(ctx, job.SubnetID)
	if !ok {
		slog.InfoContext(ctx, "Trade job finished without sentiment, no stake change", "job_id", job.ID)
		return
	}

	t.Actuate(ctx, job.SubnetID, job.Hotkey, mean)
}

// Actuate submits the stake action for mean, if any. It reports whether an action was accepted.
func (t *TradeRunner) Actuate(ctx context.Context, subnetID uint16, hotkey string, mean float64) bool {
	action, ok := StakeActionFor(subnetID, hotkey, mean, t.stakeUnitRao)
	if !ok {
		slog.InfoContext(ctx, "Neutral sentiment, no stake change", "netuid", subnetID, "mean", mean)
		return false
	}
	if id, found := correlation.ID(ctx); found {
		action.CorrelationID = id
	}

	if err := t.actuator.Submit(ctx, action); err != nil {
		t.metrics.StakeActions.WithLabelValues(string(action.Direction), "error").Inc()
		slog.ErrorContext(ctx, "Stake action failed",
			"netuid", subnetID, "direction", action.Direction, "amount_rao", action.AmountRao, "error", err)
		return false
	}

	t.metrics.StakeActions.WithLabelValues(string(action.Direction), "ok").Inc()
	slog.InfoContext(ctx, "Stake action submitted",
		"netuid", subnetID, "direction", action.Direction, "amount_rao", action.AmountRao, "mean", mean)
	return true
}

// StakeActionFor maps a mean sentiment to a stake action: positive stakes,
// negative unstakes, and the amount is |mean| stake units. Zero, or an amount
// that rounds to nothing, yields no action.
func StakeActionFor(subnetID uint16, hotkey string, mean float64, stakeUnitRao int64) (domain.StakeAction, bool) {
	if mean == 0 || math.IsNaN(mean) || stakeUnitRao <= 0 {
		return domain.StakeAction{}, false
	}

	amount := math.Round(math.Abs(mean) * float64(stakeUnitRao))
	if amount < 1 {
		return domain.StakeAction{}, false
	}

	direction := domain.StakeAdd
	if mean < 0 {
		direction = domain.StakeRemove
	}

	return domain.StakeAction{
		SubnetID:  subnetID,
		Hotkey:    hotkey,
		Direction: direction,
		AmountRao: uint64(amount),
		Sentiment: mean,
	}, true
}
