package payment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/shared/valueobject"
)

// Method identifies how a payment is collected
type Method string

const (
	MethodCard            Method = "card"
	MethodWallet          Method = "wallet"
	MethodInstantTransfer Method = "instant_transfer"
	MethodBankSlip        Method = "bank_slip"
)

// IsValid reports whether the method is one of the supported values
func (m Method) IsValid() bool {
	switch m {
	case MethodCard, MethodWallet, MethodInstantTransfer, MethodBankSlip:
		return true
	}
	return false
}

// Status represents the lifecycle state of a payment
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// CanTransitionTo checks whether a status transition is allowed
// Transitions are forward-only, terminal states never move backwards
func (s Status) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed},
		StatusProcessing: {StatusCompleted, StatusFailed},
		StatusCompleted:  {StatusRefunded},
		StatusFailed:     {},
		StatusRefunded:   {},
	}
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusRefunded
}

// Payment is the aggregate root for a single payment attempt against an order
type Payment struct {
	shared.BaseAggregateRoot
	OrderID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	CustomerID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	Method        Method            `gorm:"size:20;not null"`
	Status        Status            `gorm:"size:20;not null;default:'pending'"`
	Amount        decimal.Decimal   `gorm:"type:decimal(12,2);not null"`
	Currency      string            `gorm:"size:3;not null"`
	TransactionID string            `gorm:"size:255;index"`
	FailureReason string            `gorm:"size:500"`
	Data          map[string]string `gorm:"serializer:json"`
}

// TableName returns the database table name
func (Payment) TableName() string {
	return "payments"
}

// NewPayment creates a new pending payment for an order
func NewPayment(orderID, customerID uuid.UUID, method Method, amount valueobject.Money) (*Payment, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID is required")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID is required")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD",
			fmt.Sprintf("Unsupported payment method %q", method))
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           orderID,
		CustomerID:        customerID,
		Method:            method,
		Status:            StatusPending,
		Amount:            amount.Amount,
		Currency:          amount.Currency,
		Data:              make(map[string]string),
	}
	return p, nil
}

// Money returns the payment amount as a money value
func (p *Payment) Money() valueobject.Money {
	return valueobject.Money{Amount: p.Amount, Currency: p.Currency}
}

// AttachTransaction records the provider transaction reference
func (p *Payment) AttachTransaction(transactionID string) {
	p.TransactionID = transactionID
}

// AnnotateData merges provider-specific data such as redirect URLs,
// QR payloads or document references into the payment record
func (p *Payment) AnnotateData(data map[string]string) {
	if len(data) == 0 {
		return
	}
	if p.Data == nil {
		p.Data = make(map[string]string, len(data))
	}
	for k, v := range data {
		p.Data[k] = v
	}
}

func (p *Payment) transition(target Status) error {
	if !p.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot move payment from %s to %s", p.Status, target))
	}
	p.Status = target
	return nil
}

// MarkProcessing records that the payment was handed to the provider
func (p *Payment) MarkProcessing() error {
	if p.Status == StatusProcessing {
		return nil
	}
	return p.transition(StatusProcessing)
}

// Complete records a confirmed settlement
func (p *Payment) Complete() error {
	if p.Status == StatusCompleted {
		return nil
	}
	if err := p.transition(StatusCompleted); err != nil {
		return err
	}
	p.AddDomainEvent(NewPaymentCompletedEvent(p))
	return nil
}

// Fail records a declined or abandoned payment with a reason
func (p *Payment) Fail(reason string) error {
	if p.Status == StatusFailed {
		return nil
	}
	if err := p.transition(StatusFailed); err != nil {
		return err
	}
	p.FailureReason = reason
	p.AddDomainEvent(NewPaymentFailedEvent(p))
	return nil
}

// Refund records a confirmed refund of a completed payment
func (p *Payment) Refund() error {
	if p.Status == StatusRefunded {
		return nil
	}
	if err := p.transition(StatusRefunded); err != nil {
		return err
	}
	p.AddDomainEvent(NewPaymentRefundedEvent(p))
	return nil
}
