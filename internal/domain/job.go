package domain

import (
	"context"
	"time"
)

// TradeJob asks the background pipeline to score subnet sentiment and adjust stake.
type TradeJob struct {
	ID            string    `json:"id"`
	SubnetID      uint16    `json:"netuid"`
	Hotkey        string    `json:"hotkey"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// TradeJobQueue accepts jobs for fire-and-forget, at-most-once execution.
type TradeJobQueue interface {
	Enqueue(ctx context.Context, job TradeJob) error
}

// TradeJobHandler processes one dequeued job. Handlers log their own failures.
type TradeJobHandler func(ctx context.Context, job TradeJob)
