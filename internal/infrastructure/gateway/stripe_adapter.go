package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/refund"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/infrastructure/config"
)

const stripeProvider = "stripe"

// StripeAdapter implements the payment gateway port for card payments via Stripe
type StripeAdapter struct {
	config *config.StripeConfig
	logger *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter
func NewStripeAdapter(cfg *config.StripeConfig, logger *zap.Logger) *StripeAdapter {
	stripe.Key = cfg.APIKey
	if cfg.Timeout > 0 {
		stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		}))
	}
	return &StripeAdapter{
		config: cfg,
		logger: logger,
	}
}

// Provider returns the provider identifier
func (a *StripeAdapter) Provider() string {
	return stripeProvider
}

// Methods returns the payment methods this gateway collects
func (a *StripeAdapter) Methods() []payment.Method {
	return []payment.Method{payment.MethodCard}
}

// CreateCharge creates and confirms a PaymentIntent
func (a *StripeAdapter) CreateCharge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	a.logger.Debug("Creating Stripe payment intent",
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("order_number", req.OrderNumber))

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.MinorUnits()),
		Currency: stripe.String(strings.ToLower(req.Amount.Currency)),
		Metadata: map[string]string{
			"payment_id":   req.PaymentID.String(),
			"order_number": req.OrderNumber,
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if token := req.Extra["payment_method"]; token != "" {
		params.PaymentMethod = stripe.String(token)
		params.Confirm = stripe.Bool(true)
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		}
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, a.classifyError(err, "failed to create payment intent")
	}

	a.logger.Info("Created Stripe payment intent",
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("transaction_id", pi.ID),
		zap.String("stripe_status", string(pi.Status)))

	result := &payment.ChargeResult{
		TransactionID: pi.ID,
		Status:        mapIntentStatus(pi.Status),
		Data:          map[string]string{},
	}
	if pi.ClientSecret != "" {
		result.Data["client_secret"] = pi.ClientSecret
	}
	return result, nil
}

// Refund refunds a settled PaymentIntent
func (a *StripeAdapter) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.TransactionID),
		Amount:        stripe.Int64(req.Amount.MinorUnits()),
	}
	if req.Reason != "" {
		params.Metadata = map[string]string{"reason": req.Reason}
	}
	params.Context = ctx

	ref, err := refund.New(params)
	if err != nil {
		return nil, a.classifyError(err, "failed to create refund")
	}

	a.logger.Info("Created Stripe refund",
		zap.String("transaction_id", req.TransactionID),
		zap.String("refund_id", ref.ID))

	status := payment.StatusRefunded
	if ref.Status == stripe.RefundStatusFailed {
		status = payment.StatusCompleted
	}
	return &payment.RefundResult{RefundID: ref.ID, Status: status}, nil
}

// CheckStatus queries Stripe for the current status of a PaymentIntent
func (a *StripeAdapter) CheckStatus(ctx context.Context, transactionID string) (payment.Status, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(transactionID, params)
	if err != nil {
		return "", a.classifyError(err, "failed to get payment intent")
	}
	return mapIntentStatus(pi.Status), nil
}

// VerifyWebhook verifies the Stripe-Signature header and parses the event
func (a *StripeAdapter) VerifyWebhook(payload []byte, header http.Header) (*payment.GatewayEvent, error) {
	// The account's API version drifts independently of the pinned SDK
	// version, a mismatch must not reject an authentic event
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"),
		a.config.WebhookSecret, webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, payment.NewGatewayError(stripeProvider, payment.GatewayErrInvalidResponse,
			"webhook signature verification failed", err)
	}

	gwEvent := &payment.GatewayEvent{
		EventID:    event.ID,
		OccurredAt: time.Unix(event.Created, 0),
		Raw:        payload,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, payment.NewGatewayError(stripeProvider, payment.GatewayErrInvalidResponse,
				"malformed payment intent payload", err)
		}
		gwEvent.TransactionID = pi.ID
		if event.Type == "payment_intent.succeeded" {
			gwEvent.Kind = payment.EventKindSucceeded
		} else {
			gwEvent.Kind = payment.EventKindFailed
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, payment.NewGatewayError(stripeProvider, payment.GatewayErrInvalidResponse,
				"malformed charge payload", err)
		}
		gwEvent.Kind = payment.EventKindRefunded
		if ch.PaymentIntent != nil {
			gwEvent.TransactionID = ch.PaymentIntent.ID
		}
	default:
		gwEvent.Kind = payment.EventKindIgnored
	}

	return gwEvent, nil
}

func (a *StripeAdapter) classifyError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return payment.NewGatewayError(stripeProvider, payment.GatewayErrTimeout, message, err)
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			return payment.NewGatewayError(stripeProvider, payment.GatewayErrDeclined, message, err)
		case stripe.ErrorTypeAPI:
			return payment.NewGatewayError(stripeProvider, payment.GatewayErrUnavailable, message, err)
		default:
			return payment.NewGatewayError(stripeProvider, payment.GatewayErrInvalidResponse, message, err)
		}
	}
	return payment.NewGatewayError(stripeProvider, payment.GatewayErrUnavailable, message, err)
}

func mapIntentStatus(status stripe.PaymentIntentStatus) payment.Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return payment.StatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return payment.StatusFailed
	default:
		// requires_action, requires_confirmation, processing
		return payment.StatusProcessing
	}
}

// Ensure StripeAdapter implements the gateway port
var _ payment.Gateway = (*StripeAdapter)(nil)
