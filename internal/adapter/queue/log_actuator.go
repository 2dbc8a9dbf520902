package queue

import (
	"context"
	"log/slog"

	"github.com/vmanilo/paralimni/internal/domain"
)

// LogActuator records stake actions in the log instead of publishing them.
// It is used when no Kafka brokers are configured.
type LogActuator struct{}

var _ domain.StakeActuator = LogActuator{}

func (LogActuator) Submit(ctx context.Context, action domain.StakeAction) error {
	slog.InfoContext(ctx, "Stake action (not published, no broker configured)",
		"netuid", action.SubnetID,
		"hotkey", action.Hotkey,
		"direction", action.Direction,
		"amount_rao", action.AmountRao,
		"sentiment", action.Sentiment,
	)
	return nil
}
