package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/notification"
)

// LogSender writes notifications to the application log
// Used in development and as a fallback when Kafka is disabled
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-backed notification sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the notification
func (s *LogSender) Send(_ context.Context, n notification.Notification) error {
	s.logger.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("notification_id", n.ID.String()),
		zap.String("customer_id", n.CustomerID.String()),
		zap.String("order_id", n.OrderID.String()),
		zap.String("payment_id", n.PaymentID.String()),
		zap.String("amount", n.Amount.String()),
		zap.String("currency", n.Currency),
	)
	return nil
}

// Close is a no-op
func (s *LogSender) Close() error {
	return nil
}

// Ensure LogSender implements the sender port
var _ notification.Sender = (*LogSender)(nil)
