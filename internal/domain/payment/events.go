package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shop/backend/internal/domain/shared"
)

// Event types for the payment aggregate
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// PaymentCompletedEvent is raised when a payment settles
type PaymentCompletedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID       `json:"order_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Method        Method          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id"`
}

// NewPaymentCompletedEvent creates a PaymentCompletedEvent
func NewPaymentCompletedEvent(p *Payment) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentCompleted, "Payment", p.ID),
		OrderID:         p.OrderID,
		CustomerID:      p.CustomerID,
		Method:          p.Method,
		Amount:          p.Amount,
		Currency:        p.Currency,
		TransactionID:   p.TransactionID,
	}
}

// PaymentFailedEvent is raised when a payment is declined or abandoned
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID `json:"order_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	Method        Method    `json:"method"`
	FailureReason string    `json:"failure_reason"`
}

// NewPaymentFailedEvent creates a PaymentFailedEvent
func NewPaymentFailedEvent(p *Payment) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentFailed, "Payment", p.ID),
		OrderID:         p.OrderID,
		CustomerID:      p.CustomerID,
		Method:          p.Method,
		FailureReason:   p.FailureReason,
	}
}

// PaymentRefundedEvent is raised when a completed payment is refunded
type PaymentRefundedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID       `json:"order_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Method        Method          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id"`
}

// NewPaymentRefundedEvent creates a PaymentRefundedEvent
func NewPaymentRefundedEvent(p *Payment) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentRefunded, "Payment", p.ID),
		OrderID:         p.OrderID,
		CustomerID:      p.CustomerID,
		Method:          p.Method,
		Amount:          p.Amount,
		Currency:        p.Currency,
		TransactionID:   p.TransactionID,
	}
}
