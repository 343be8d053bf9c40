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
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/infrastructure/config"
)

const paypalProvider = "paypal"

// PayPalAdapter implements the payment gateway port for wallet payments via PayPal
// The buyer is redirected to PayPal for approval, settlement is confirmed by webhook
type PayPalAdapter struct {
	config     *config.PayPalConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalAdapter creates a new PayPal adapter
func NewPayPalAdapter(cfg *config.PayPalConfig, logger *zap.Logger) *PayPalAdapter {
	return &PayPalAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Provider returns the provider identifier
func (a *PayPalAdapter) Provider() string {
	return paypalProvider
}

// Methods returns the payment methods this gateway collects
func (a *PayPalAdapter) Methods() []payment.Method {
	return []payment.Method{payment.MethodWallet}
}

// CreateCharge creates a PayPal order and returns the buyer approval URL
func (a *PayPalAdapter) CreateCharge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	body := paypalCreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.OrderNumber,
			Description: req.Description,
			Amount: paypalAmount{
				CurrencyCode: req.Amount.Currency,
				Value:        req.Amount.Amount.StringFixed(2),
			},
		}},
		ApplicationContext: &paypalApplicationContext{
			ReturnURL: a.config.ReturnURL,
			CancelURL: a.config.CancelURL,
		},
	}

	var orderResp paypalOrderResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", body, &orderResp); err != nil {
		return nil, err
	}

	a.logger.Info("Created PayPal order",
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("transaction_id", orderResp.ID),
		zap.String("paypal_status", orderResp.Status))

	result := &payment.ChargeResult{
		TransactionID: orderResp.ID,
		Status:        mapPayPalOrderStatus(orderResp.Status),
		Data:          map[string]string{},
	}
	if approvalURL := findLink(orderResp.Links, "approve"); approvalURL != "" {
		result.Data["approval_url"] = approvalURL
	}
	return result, nil
}

// CaptureOrder captures an approved PayPal order after the buyer returns
func (a *PayPalAdapter) CaptureOrder(ctx context.Context, orderID, payerID string) (payment.Status, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	if payerID != "" {
		path += "?payer_id=" + url.QueryEscape(payerID)
	}

	var orderResp paypalOrderResponse
	if err := a.doJSON(ctx, http.MethodPost, path, struct{}{}, &orderResp); err != nil {
		return "", err
	}

	a.logger.Info("Captured PayPal order",
		zap.String("transaction_id", orderID),
		zap.String("paypal_status", orderResp.Status))

	return mapPayPalOrderStatus(orderResp.Status), nil
}

// Refund refunds a captured PayPal payment
func (a *PayPalAdapter) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	body := paypalRefundRequest{
		Amount: &paypalAmount{
			CurrencyCode: req.Amount.Currency,
			Value:        req.Amount.Amount.StringFixed(2),
		},
		NoteToPayer: req.Reason,
	}

	path := fmt.Sprintf("/v2/payments/captures/%s/refund", url.PathEscape(req.TransactionID))
	var refundResp paypalRefundResponse
	if err := a.doJSON(ctx, http.MethodPost, path, body, &refundResp); err != nil {
		return nil, err
	}

	a.logger.Info("Created PayPal refund",
		zap.String("transaction_id", req.TransactionID),
		zap.String("refund_id", refundResp.ID))

	status := payment.StatusRefunded
	if refundResp.Status != "COMPLETED" && refundResp.Status != "PENDING" {
		status = payment.StatusCompleted
	}
	return &payment.RefundResult{RefundID: refundResp.ID, Status: status}, nil
}

// CheckStatus queries PayPal for the current status of an order
func (a *PayPalAdapter) CheckStatus(ctx context.Context, transactionID string) (payment.Status, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(transactionID)
	var orderResp paypalOrderResponse
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &orderResp); err != nil {
		return "", err
	}
	return mapPayPalOrderStatus(orderResp.Status), nil
}

// VerifyWebhook verifies the shared-secret signature and parses the notification
func (a *PayPalAdapter) VerifyWebhook(payload []byte, header http.Header) (*payment.GatewayEvent, error) {
	env, err := parseSignedEvent(paypalProvider, payload, header, a.config.WebhookSecret)
	if err != nil {
		return nil, err
	}

	kind := payment.EventKindIgnored
	switch env.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		kind = payment.EventKindSucceeded
	case "PAYMENT.CAPTURE.DENIED", "CHECKOUT.ORDER.VOIDED":
		kind = payment.EventKindFailed
	case "PAYMENT.CAPTURE.REFUNDED":
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

// token returns a cached OAuth access token, refreshing it when near expiry
func (a *PayPalAdapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.tokenExpiry.Add(-time.Minute)) {
		return a.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", payment.NewGatewayError(paypalProvider, payment.GatewayErrUnavailable,
			"failed to build token request", err)
	}
	req.SetBasicAuth(a.config.ClientID, a.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", a.classifyTransportError(err, "token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", payment.NewGatewayError(paypalProvider, payment.GatewayErrUnavailable,
			fmt.Sprintf("token request returned HTTP %d", resp.StatusCode), nil)
	}

	var tokenResp paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", payment.NewGatewayError(paypalProvider, payment.GatewayErrInvalidResponse,
			"malformed token response", err)
	}

	a.accessToken = tokenResp.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return a.accessToken, nil
}

// doJSON performs an authenticated JSON API call
func (a *PayPalAdapter) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return payment.NewGatewayError(paypalProvider, payment.GatewayErrInvalidResponse,
				"failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return payment.NewGatewayError(paypalProvider, payment.GatewayErrUnavailable,
			"failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return a.classifyTransportError(err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.NewGatewayError(paypalProvider, payment.GatewayErrInvalidResponse,
			"failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		var errResp paypalErrorResponse
		_ = json.Unmarshal(respBody, &errResp)

		code := payment.GatewayErrUnavailable
		if resp.StatusCode == http.StatusUnprocessableEntity {
			code = payment.GatewayErrDeclined
		} else if resp.StatusCode < 500 {
			code = payment.GatewayErrInvalidResponse
		}
		return payment.NewGatewayError(paypalProvider, code,
			fmt.Sprintf("HTTP %d %s %s", resp.StatusCode, errResp.Name, errResp.Message), nil)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return payment.NewGatewayError(paypalProvider, payment.GatewayErrInvalidResponse,
				"malformed response body", err)
		}
	}
	return nil
}

func (a *PayPalAdapter) classifyTransportError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return payment.NewGatewayError(paypalProvider, payment.GatewayErrTimeout, message, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return payment.NewGatewayError(paypalProvider, payment.GatewayErrTimeout, message, err)
	}
	return payment.NewGatewayError(paypalProvider, payment.GatewayErrUnavailable, message, err)
}

func findLink(links []paypalLink, rel string) string {
	for _, l := range links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

func mapPayPalOrderStatus(status string) payment.Status {
	switch status {
	case paypalOrderCompleted:
		return payment.StatusCompleted
	case paypalOrderVoided:
		return payment.StatusFailed
	case paypalOrderCreated, paypalOrderApproved, paypalOrderPayerActionRq:
		return payment.StatusProcessing
	default:
		return payment.StatusProcessing
	}
}

// Ensure PayPalAdapter implements the gateway port
var _ payment.Gateway = (*PayPalAdapter)(nil)
