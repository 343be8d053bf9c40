package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies the customer message to send
type Kind string

const (
	KindPaymentConfirmation Kind = "payment_confirmation"
	KindPaymentFailed       Kind = "payment_failed"
	KindRefundConfirmation  Kind = "refund_confirmation"
)

// Notification is a customer-facing message queued for delivery
type Notification struct {
	ID         uuid.UUID       `json:"id"`
	Kind       Kind            `json:"kind"`
	CustomerID uuid.UUID       `json:"customer_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// New creates a notification with a fresh ID and timestamp
func New(kind Kind, customerID, orderID, paymentID uuid.UUID) Notification {
	return Notification{
		ID:         uuid.New(),
		Kind:       kind,
		CustomerID: customerID,
		OrderID:    orderID,
		PaymentID:  paymentID,
		CreatedAt:  time.Now(),
	}
}

// Sender delivers notifications to the customer messaging pipeline
type Sender interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}
