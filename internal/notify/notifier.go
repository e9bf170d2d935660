// Package notify delivers operator alerts. Delivery is best effort:
// sender failures are logged and counted, never propagated, so a dead
// Telegram bot cannot stall a monitoring cycle.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers the message.
	Send(ctx context.Context, message string) error

	// Name returns the channel identifier, e.g. "telegram".
	Name() string
}

// Notifier fans a message out to every configured sender.
type Notifier struct {
	senders []Sender
	logger  *zap.Logger
}

// New creates a notifier delivering to the given senders.
func New(logger *zap.Logger, senders ...Sender) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger,
	}
}

// Send delivers the message to all senders. Failures are logged per
// sender and swallowed.
func (n *Notifier) Send(ctx context.Context, message string) {
	for _, s := range n.senders {
		err := s.Send(ctx, message)
		if err != nil {
			SendFailuresTotal.WithLabelValues(s.Name()).Inc()
			n.logger.Error("notification-send-failed",
				zap.String("sender", s.Name()),
				zap.Error(err))
			continue
		}
		SentTotal.WithLabelValues(s.Name()).Inc()
	}
}
