package domain

import "context"

// Sentiment scores are bounded to this range; anything outside is treated as a miss.
const (
	MinSentimentScore = -100
	MaxSentimentScore = 100
)

// TextItem is one piece of social-media text about a subnet.
type TextItem struct {
	Text string
}

// TextSearcher returns a bounded, quality-filtered list of recent texts for a subnet.
type TextSearcher interface {
	Search(ctx context.Context, subnetID uint16) ([]TextItem, error)
}

// SentimentScorer scores a single text. ok=false means no score could be extracted;
// scorers never return errors to the caller.
type SentimentScorer interface {
	Score(ctx context.Context, subnetID uint16, text string) (score int, ok bool)
}

// StakeDirection is the side of a stake adjustment.
type StakeDirection string

const (
	StakeAdd    StakeDirection = "stake"
	StakeRemove StakeDirection = "unstake"
)

// StakeAction is handed to the external stake actuator.
type StakeAction struct {
	SubnetID      uint16         `json:"netuid"`
	Hotkey        string         `json:"hotkey"`
	Direction     StakeDirection `json:"direction"`
	AmountRao     uint64         `json:"amount_rao"`
	Sentiment     float64        `json:"sentiment"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// StakeActuator issues stake or unstake actions against the ledger.
type StakeActuator interface {
	Submit(ctx context.Context, action StakeAction) error
}
