package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, channelID string, msg Message) error {
	s.log.Info("notification",
		zap.String("channel", channelID),
		zap.String("kind", string(msg.Kind)),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
	)
	return nil
}
