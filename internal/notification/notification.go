package notification

import (
	"context"
	"log/slog"
)

const (
	// KindWithdrawalStatus signals that a submitted withdrawal changed
	// status while the receipt was on screen.
	KindWithdrawalStatus = "withdrawal_status"
	// KindDepositCompleted signals a confirmed deposit.
	KindDepositCompleted = "deposit_completed"
)

// Message describes a notification payload.
type Message struct {
	Kind      string
	Reference string
	Body      string
}

// Notifier hands notifications to the (out of scope) delivery collaborator.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "reference", message.Reference, "body", message.Body)
	return nil
}
