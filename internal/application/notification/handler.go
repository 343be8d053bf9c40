package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/notification"
	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/domain/shared"
)

// PaymentEventHandler turns payment lifecycle events into customer
// notifications. Delivery failures are logged and swallowed so they
// never break payment processing.
type PaymentEventHandler struct {
	sender notification.Sender
	logger *zap.Logger
}

// NewPaymentEventHandler creates a handler bound to a sender
func NewPaymentEventHandler(sender notification.Sender, logger *zap.Logger) *PaymentEventHandler {
	return &PaymentEventHandler{sender: sender, logger: logger}
}

// EventTypes returns the payment events this handler reacts to
func (h *PaymentEventHandler) EventTypes() []string {
	return []string{
		payment.EventPaymentCompleted,
		payment.EventPaymentFailed,
		payment.EventPaymentRefunded,
	}
}

// Handle converts a payment event into a notification and sends it
func (h *PaymentEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var n notification.Notification

	switch e := event.(type) {
	case *payment.PaymentCompletedEvent:
		n = notification.New(notification.KindPaymentConfirmation, e.CustomerID, e.OrderID, e.AggregateID())
		n.Amount = e.Amount
		n.Currency = e.Currency
	case *payment.PaymentFailedEvent:
		n = notification.New(notification.KindPaymentFailed, e.CustomerID, e.OrderID, e.AggregateID())
		n.Reason = e.FailureReason
	case *payment.PaymentRefundedEvent:
		n = notification.New(notification.KindRefundConfirmation, e.CustomerID, e.OrderID, e.AggregateID())
		n.Amount = e.Amount
		n.Currency = e.Currency
	default:
		return nil
	}

	if err := h.sender.Send(ctx, n); err != nil {
		h.logger.Error("failed to send notification",
			zap.String("kind", string(n.Kind)),
			zap.String("payment_id", n.PaymentID.String()),
			zap.Error(err))
	}
	return nil
}
