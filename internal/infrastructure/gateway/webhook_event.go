package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shop/backend/internal/domain/payment"
)

// Providers on our shared-secret webhook channel sign
// timestamp.payload and send both values as headers
const (
	signatureHeader = "X-Webhook-Signature"
	timestampHeader = "X-Webhook-Timestamp"
)

// hookEnvelope is the common notification format of the non-Stripe providers
type hookEnvelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// parseSignedEvent verifies the shared-secret signature and decodes the envelope
func parseSignedEvent(provider string, payload []byte, header http.Header, secret string) (*hookEnvelope, error) {
	if err := verifySignature(header.Get(timestampHeader), payload, header.Get(signatureHeader), secret); err != nil {
		return nil, payment.NewGatewayError(provider, payment.GatewayErrInvalidResponse,
			"webhook signature verification failed", err)
	}

	var env hookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, payment.NewGatewayError(provider, payment.GatewayErrInvalidResponse,
			"malformed webhook payload", err)
	}
	if env.EventID == "" {
		return nil, payment.NewGatewayError(provider, payment.GatewayErrInvalidResponse,
			"webhook payload missing event_id", nil)
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now()
	}
	return &env, nil
}
