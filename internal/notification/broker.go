package notification

import (
	"context"
	"fmt"
)

// Publisher publishes a JSON document under a routing key.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// BrokerSender hands messages to the message broker; an external delivery
// service consumes them. Broker errors count as transient.
type BrokerSender struct {
	pub Publisher
}

func NewBrokerSender(pub Publisher) *BrokerSender {
	return &BrokerSender{pub: pub}
}

type brokerEnvelope struct {
	ChannelID string `json:"channel_id"`
	Message
}

func (s *BrokerSender) Send(ctx context.Context, channelID string, msg Message) error {
	key := "notification." + string(msg.Kind)
	if err := s.pub.PublishJSON(ctx, key, brokerEnvelope{ChannelID: channelID, Message: msg}); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}
