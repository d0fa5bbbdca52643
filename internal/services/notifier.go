package services

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier delivers plain text messages to Telegram users
type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string) error
}

// MembershipChecker reports whether a user is a member of a channel or group
type MembershipChecker interface {
	IsMember(ctx context.Context, group string, telegramID int64) (bool, error)
}

// LogNotifier writes notifications to the log. Used when the bot is disabled.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message
func (n *LogNotifier) Notify(_ context.Context, telegramID int64, text string) error {
	n.logger.WithField("telegram_id", telegramID).Infof("Notification: %s", text)
	return nil
}
