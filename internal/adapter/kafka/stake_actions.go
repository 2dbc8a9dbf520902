package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/vmanilo/paralimni/internal/domain"
)

// StakeActionPublisher hands stake actions to an external signer via Kafka.
// Messages are keyed by hotkey so actions for one account stay ordered.
type StakeActionPublisher struct {
	writer messageWriter
}

var _ domain.StakeActuator = (*StakeActionPublisher)(nil)

func NewStakeActionPublisher(brokers []string, topic string) *StakeActionPublisher {
	return &StakeActionPublisher{writer: newWriter(brokers, topic)}
}

func (p *StakeActionPublisher) Submit(ctx context.Context, action domain.StakeAction) error {
	value, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal stake action: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(action.Hotkey), Value: value}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *StakeActionPublisher) Close() error {
	return p.writer.Close()
}
