package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/infrastructure/config"
)

const pixProvider = "pix"

// PixAdapter implements the payment gateway port for instant transfers
// A charge produces a copy-and-paste QR payload, settlement arrives by webhook
type PixAdapter struct {
	config     *config.PixConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPixAdapter creates a new Pix adapter
func NewPixAdapter(cfg *config.PixConfig, logger *zap.Logger) *PixAdapter {
	return &PixAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Provider returns the provider identifier
func (a *PixAdapter) Provider() string {
	return pixProvider
}

// Methods returns the payment methods this gateway collects
func (a *PixAdapter) Methods() []payment.Method {
	return []payment.Method{payment.MethodInstantTransfer}
}

type pixChargeRequest struct {
	PixKey      string `json:"pix_key"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description,omitempty"`
	ExpiresIn   int64  `json:"expires_in_seconds"`
}

type pixChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	QRCode        string `json:"qr_code"`
	QRCodeImage   string `json:"qr_code_image_url"`
	ExpiresAt     string `json:"expires_at"`
}

type pixStatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type pixRefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// CreateCharge creates a dynamic QR charge at the provider
func (a *PixAdapter) CreateCharge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	body := pixChargeRequest{
		PixKey:      a.config.PixKey,
		Amount:      req.Amount.Amount.StringFixed(2),
		Currency:    req.Amount.Currency,
		Reference:   req.OrderNumber,
		Description: req.Description,
		ExpiresIn:   int64(a.config.Expiration.Seconds()),
	}

	var chargeResp pixChargeResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v1/charges", body, &chargeResp); err != nil {
		return nil, err
	}

	a.logger.Info("Created Pix charge",
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("transaction_id", chargeResp.TransactionID))

	result := &payment.ChargeResult{
		TransactionID: chargeResp.TransactionID,
		Status:        mapPixStatus(chargeResp.Status),
		Data:          map[string]string{},
	}
	if chargeResp.QRCode != "" {
		result.Data["qr_code"] = chargeResp.QRCode
	}
	if chargeResp.QRCodeImage != "" {
		result.Data["qr_code_image_url"] = chargeResp.QRCodeImage
	}
	if chargeResp.ExpiresAt != "" {
		result.Data["expires_at"] = chargeResp.ExpiresAt
	}
	return result, nil
}

// Refund returns a settled transfer to the payer
func (a *PixAdapter) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	body := map[string]string{
		"amount": req.Amount.Amount.StringFixed(2),
		"reason": req.Reason,
	}

	path := fmt.Sprintf("/v1/charges/%s/refund", url.PathEscape(req.TransactionID))
	var refundResp pixRefundResponse
	if err := a.doJSON(ctx, http.MethodPost, path, body, &refundResp); err != nil {
		return nil, err
	}

	a.logger.Info("Created Pix refund",
		zap.String("transaction_id", req.TransactionID),
		zap.String("refund_id", refundResp.RefundID))

	return &payment.RefundResult{RefundID: refundResp.RefundID, Status: payment.StatusRefunded}, nil
}

// CheckStatus queries the provider for the current status of a charge
func (a *PixAdapter) CheckStatus(ctx context.Context, transactionID string) (payment.Status, error) {
	path := "/v1/charges/" + url.PathEscape(transactionID)
	var statusResp pixStatusResponse
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &statusResp); err != nil {
		return "", err
	}
	return mapPixStatus(statusResp.Status), nil
}

// VerifyWebhook verifies the shared-secret signature and parses the notification
func (a *PixAdapter) VerifyWebhook(payload []byte, header http.Header) (*payment.GatewayEvent, error) {
	env, err := parseSignedEvent(pixProvider, payload, header, a.config.WebhookSecret)
	if err != nil {
		return nil, err
	}

	kind := payment.EventKindIgnored
	switch env.EventType {
	case "pix.received":
		kind = payment.EventKindSucceeded
	case "pix.expired", "pix.failed":
		kind = payment.EventKindFailed
	case "pix.refunded":
		kind = payment.EventKindRefunded
	}

	return &payment.GatewayEvent{
		Kind:          kind,
		EventID:       env.EventID,
		TransactionID: env.TransactionID,
		OccurredAt:    env.OccurredAt,
		Raw:           payload,
	}, nil
}

func (a *PixAdapter) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return payment.NewGatewayError(pixProvider, payment.GatewayErrInvalidResponse,
				"failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return payment.NewGatewayError(pixProvider, payment.GatewayErrUnavailable,
			"failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return payment.NewGatewayError(pixProvider, payment.GatewayErrTimeout, "request timed out", err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return payment.NewGatewayError(pixProvider, payment.GatewayErrTimeout, "request timed out", err)
		}
		return payment.NewGatewayError(pixProvider, payment.GatewayErrUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.NewGatewayError(pixProvider, payment.GatewayErrInvalidResponse,
			"failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		code := payment.GatewayErrUnavailable
		if resp.StatusCode == http.StatusUnprocessableEntity {
			code = payment.GatewayErrDeclined
		} else if resp.StatusCode < 500 {
			code = payment.GatewayErrInvalidResponse
		}
		return payment.NewGatewayError(pixProvider, code,
			fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return payment.NewGatewayError(pixProvider, payment.GatewayErrInvalidResponse,
				"malformed response body", err)
		}
	}
	return nil
}

func mapPixStatus(status string) payment.Status {
	switch status {
	case "paid", "completed":
		return payment.StatusCompleted
	case "expired", "failed":
		return payment.StatusFailed
	case "refunded":
		return payment.StatusRefunded
	default:
		// created, pending
		return payment.StatusProcessing
	}
}

// Ensure PixAdapter implements the gateway port
var _ payment.Gateway = (*PixAdapter)(nil)
