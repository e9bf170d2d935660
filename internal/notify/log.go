package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the application log. It is the
// fallback channel when no Telegram credentials are configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns "log".
func (l *LogSender) Name() string { return "log" }

// Send logs the message at info level.
func (l *LogSender) Send(_ context.Context, message string) error {
	l.logger.Info("notification", zap.String("message", message))
	return nil
}
