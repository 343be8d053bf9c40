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
	"time"

	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/infrastructure/config"
)

const boletoProvider = "boleto"

// BoletoAdapter implements the payment gateway port for bank slip payments
// A charge issues a slip with a barcode and a printable document,
// settlement arrives by webhook days later when the payer settles at a bank
type BoletoAdapter struct {
	config     *config.BoletoConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBoletoAdapter creates a new bank slip adapter
func NewBoletoAdapter(cfg *config.BoletoConfig, logger *zap.Logger) *BoletoAdapter {
	return &BoletoAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Provider returns the provider identifier
func (a *BoletoAdapter) Provider() string {
	return boletoProvider
}

// Methods returns the payment methods this gateway collects
func (a *BoletoAdapter) Methods() []payment.Method {
	return []payment.Method{payment.MethodBankSlip}
}

type boletoIssueRequest struct {
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
	Description   string `json:"description,omitempty"`
	PayerName     string `json:"payer_name,omitempty"`
	PayerDocument string `json:"payer_document,omitempty"`
	DueDate       string `json:"due_date"`
}

type boletoIssueResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Barcode       string `json:"barcode"`
	DigitableLine string `json:"digitable_line"`
	PDFURL        string `json:"pdf_url"`
	DueDate       string `json:"due_date"`
}

type boletoStatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type boletoRefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// CreateCharge issues a bank slip at the provider
func (a *BoletoAdapter) CreateCharge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	dueDate := time.Now().AddDate(0, 0, a.config.DueDays).Format("2006-01-02")
	body := boletoIssueRequest{
		Amount:        req.Amount.Amount.StringFixed(2),
		Currency:      req.Amount.Currency,
		Reference:     req.OrderNumber,
		Description:   req.Description,
		PayerName:     req.Extra["payer_name"],
		PayerDocument: req.Extra["payer_document"],
		DueDate:       dueDate,
	}

	var issueResp boletoIssueResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v1/boletos", body, &issueResp); err != nil {
		return nil, err
	}

	a.logger.Info("Issued bank slip",
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("transaction_id", issueResp.TransactionID),
		zap.String("due_date", dueDate))

	result := &payment.ChargeResult{
		TransactionID: issueResp.TransactionID,
		Status:        mapBoletoStatus(issueResp.Status),
		Data:          map[string]string{},
	}
	if issueResp.Barcode != "" {
		result.Data["barcode"] = issueResp.Barcode
	}
	if issueResp.DigitableLine != "" {
		result.Data["digitable_line"] = issueResp.DigitableLine
	}
	if issueResp.PDFURL != "" {
		result.Data["pdf_url"] = issueResp.PDFURL
	}
	if issueResp.DueDate != "" {
		result.Data["due_date"] = issueResp.DueDate
	} else {
		result.Data["due_date"] = dueDate
	}
	return result, nil
}

// Refund returns a settled slip payment to the payer
func (a *BoletoAdapter) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	body := map[string]string{
		"amount": req.Amount.Amount.StringFixed(2),
		"reason": req.Reason,
	}

	path := fmt.Sprintf("/v1/boletos/%s/refund", url.PathEscape(req.TransactionID))
	var refundResp boletoRefundResponse
	if err := a.doJSON(ctx, http.MethodPost, path, body, &refundResp); err != nil {
		return nil, err
	}

	a.logger.Info("Created bank slip refund",
		zap.String("transaction_id", req.TransactionID),
		zap.String("refund_id", refundResp.RefundID))

	return &payment.RefundResult{RefundID: refundResp.RefundID, Status: payment.StatusRefunded}, nil
}

// CheckStatus queries the provider for the current status of a slip
func (a *BoletoAdapter) CheckStatus(ctx context.Context, transactionID string) (payment.Status, error) {
	path := "/v1/boletos/" + url.PathEscape(transactionID)
	var statusResp boletoStatusResponse
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &statusResp); err != nil {
		return "", err
	}
	return mapBoletoStatus(statusResp.Status), nil
}

// VerifyWebhook verifies the shared-secret signature and parses the notification
func (a *BoletoAdapter) VerifyWebhook(payload []byte, header http.Header) (*payment.GatewayEvent, error) {
	env, err := parseSignedEvent(boletoProvider, payload, header, a.config.WebhookSecret)
	if err != nil {
		return nil, err
	}

	kind := payment.EventKindIgnored
	switch env.EventType {
	case "boleto.paid":
		kind = payment.EventKindSucceeded
	case "boleto.expired", "boleto.cancelled":
		kind = payment.EventKindFailed
	case "boleto.refunded":
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

func (a *BoletoAdapter) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return payment.NewGatewayError(boletoProvider, payment.GatewayErrInvalidResponse,
				"failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return payment.NewGatewayError(boletoProvider, payment.GatewayErrUnavailable,
			"failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return payment.NewGatewayError(boletoProvider, payment.GatewayErrTimeout, "request timed out", err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return payment.NewGatewayError(boletoProvider, payment.GatewayErrTimeout, "request timed out", err)
		}
		return payment.NewGatewayError(boletoProvider, payment.GatewayErrUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.NewGatewayError(boletoProvider, payment.GatewayErrInvalidResponse,
			"failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		code := payment.GatewayErrUnavailable
		if resp.StatusCode == http.StatusUnprocessableEntity {
			code = payment.GatewayErrDeclined
		} else if resp.StatusCode < 500 {
			code = payment.GatewayErrInvalidResponse
		}
		return payment.NewGatewayError(boletoProvider, code,
			fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return payment.NewGatewayError(boletoProvider, payment.GatewayErrInvalidResponse,
				"malformed response body", err)
		}
	}
	return nil
}

func mapBoletoStatus(status string) payment.Status {
	switch status {
	case "paid":
		return payment.StatusCompleted
	case "expired", "cancelled":
		return payment.StatusFailed
	case "refunded":
		return payment.StatusRefunded
	default:
		// issued, registered
		return payment.StatusProcessing
	}
}

// Ensure BoletoAdapter implements the gateway port
var _ payment.Gateway = (*BoletoAdapter)(nil)
