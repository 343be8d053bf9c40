package checkout

import (
	"github.com/google/uuid"

	"github.com/shop/backend/internal/domain/payment"
)

// InitiatePaymentCommand is the input for starting a payment attempt
type InitiatePaymentCommand struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Method     payment.Method
	// Extra carries method-specific inputs such as a card token
	// or the payer's document number for a bank slip
	Extra map[string]string
}

// PaymentResult is the outcome of a payment initiation
type PaymentResult struct {
	PaymentID     uuid.UUID         `json:"payment_id"`
	OrderID       uuid.UUID         `json:"order_id"`
	Method        payment.Method    `json:"method"`
	Status        payment.Status    `json:"status"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	// Data carries provider artifacts the customer needs to finish paying,
	// such as a wallet approval URL, a QR payload or a slip barcode
	Data map[string]string `json:"data,omitempty"`
}

func newPaymentResult(p *payment.Payment) *PaymentResult {
	return &PaymentResult{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		Method:        p.Method,
		Status:        p.Status,
		TransactionID: p.TransactionID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Data:          p.Data,
	}
}
