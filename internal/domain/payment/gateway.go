package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shop/backend/internal/domain/shared/valueobject"
)

// GatewayErrorCode classifies provider failures
type GatewayErrorCode string

const (
	GatewayErrTimeout         GatewayErrorCode = "timeout"
	GatewayErrDeclined        GatewayErrorCode = "declined"
	GatewayErrUnavailable     GatewayErrorCode = "unavailable"
	GatewayErrInvalidResponse GatewayErrorCode = "invalid_response"
)

// GatewayError is a classified error returned by a payment provider
type GatewayError struct {
	Code     GatewayErrorCode
	Provider string
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s gateway %s: %s: %v", e.Provider, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s gateway %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// NewGatewayError creates a classified gateway error
func NewGatewayError(provider string, code GatewayErrorCode, message string, cause error) *GatewayError {
	return &GatewayError{Code: code, Provider: provider, Message: message, Cause: cause}
}

// ChargeRequest describes a charge to create at the provider
type ChargeRequest struct {
	PaymentID   uuid.UUID
	OrderNumber string
	Amount      valueobject.Money
	Method      Method
	CustomerID  uuid.UUID
	Description string
	// Extra carries method-specific inputs such as a card token
	// or a payer document number
	Extra map[string]string
}

// ChargeResult is the provider's answer to a charge creation
type ChargeResult struct {
	// TransactionID is the provider-side reference for this charge
	TransactionID string
	// Status is the payment status implied by the provider response
	Status Status
	// Data carries method-specific outputs such as a redirect URL,
	// a QR payload or a document barcode
	Data map[string]string
}

// RefundRequest describes a refund of an existing charge
type RefundRequest struct {
	TransactionID string
	Amount        valueobject.Money
	Reason        string
}

// RefundResult is the provider's answer to a refund request
type RefundResult struct {
	RefundID string
	Status   Status
}

// EventKind classifies webhook notifications
type EventKind string

const (
	EventKindSucceeded EventKind = "succeeded"
	EventKindFailed    EventKind = "failed"
	EventKindRefunded  EventKind = "refunded"
	EventKindIgnored   EventKind = "ignored"
)

// GatewayEvent is a provider webhook notification after signature verification
type GatewayEvent struct {
	// Kind classifies what happened at the provider
	Kind EventKind
	// EventID is the provider's unique event identifier, used for deduplication
	EventID string
	// TransactionID links the event to a charge
	TransactionID string
	// OccurredAt is the provider-side event timestamp
	OccurredAt time.Time
	// Raw is the verified payload for auditing
	Raw []byte
}

// Gateway is the port implemented by each payment provider adapter
type Gateway interface {
	// Provider returns the provider identifier used in webhook routing
	Provider() string

	// Methods returns the payment methods this gateway can collect
	Methods() []Method

	// CreateCharge creates a charge at the provider
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// Refund refunds a settled charge at the provider
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)

	// CheckStatus queries the provider for the current status of a charge
	CheckStatus(ctx context.Context, transactionID string) (Status, error)

	// VerifyWebhook verifies a webhook signature and parses the payload
	// Returns an error if the signature is invalid or the payload malformed
	VerifyWebhook(payload []byte, header http.Header) (*GatewayEvent, error)
}
