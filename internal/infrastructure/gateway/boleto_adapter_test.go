package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/domain/shared/valueobject"
	"github.com/shop/backend/internal/infrastructure/config"
)

func newBoletoTestAdapter(t *testing.T, handler http.HandlerFunc) *BoletoAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBoletoAdapter(&config.BoletoConfig{
		BaseURL:       srv.URL,
		APIKey:        "boleto-api-key",
		WebhookSecret: "whsec_boleto",
		Timeout:       5 * time.Second,
		DueDays:       3,
	}, zap.NewNop())
}

func TestBoletoAdapterCreateCharge(t *testing.T) {
	adapter := newBoletoTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/boletos", r.URL.Path)

		var body boletoIssueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "320.00", body.Amount)
		assert.Equal(t, "Maria Souza", body.PayerName)
		assert.NotEmpty(t, body.DueDate)

		json.NewEncoder(w).Encode(boletoIssueResponse{
			TransactionID: "bol_tx_1",
			Status:        "issued",
			Barcode:       "23793381286008301359703000064305993520000032000",
			DigitableLine: "23793.38128 60083.013597 03000.064305 9 93520000032000",
			PDFURL:        "https://boleto.example/docs/bol_tx_1.pdf",
			DueDate:       body.DueDate,
		})
	})

	amount, _ := valueobject.NewMoneyFromFloat(320.00, "BRL")
	result, err := adapter.CreateCharge(context.Background(), payment.ChargeRequest{
		PaymentID:   uuid.New(),
		OrderNumber: "ORD-2024-0003",
		Amount:      amount,
		Method:      payment.MethodBankSlip,
		Extra: map[string]string{
			"payer_name":     "Maria Souza",
			"payer_document": "123.456.789-09",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "bol_tx_1", result.TransactionID)
	assert.Equal(t, payment.StatusProcessing, result.Status)
	assert.NotEmpty(t, result.Data["barcode"])
	assert.Equal(t, "https://boleto.example/docs/bol_tx_1.pdf", result.Data["pdf_url"])
	assert.NotEmpty(t, result.Data["due_date"])
}

func TestBoletoAdapterCheckStatus(t *testing.T) {
	adapter := newBoletoTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/boletos/bol_tx_1", r.URL.Path)
		json.NewEncoder(w).Encode(boletoStatusResponse{TransactionID: "bol_tx_1", Status: "expired"})
	})

	status, err := adapter.CheckStatus(context.Background(), "bol_tx_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, status)
}

func TestBoletoAdapterVerifyWebhook(t *testing.T) {
	adapter := NewBoletoAdapter(&config.BoletoConfig{
		WebhookSecret: "whsec_boleto",
		Timeout:       time.Second,
		DueDays:       3,
	}, zap.NewNop())

	payload, err := json.Marshal(hookEnvelope{
		EventID:       "evt_b1",
		EventType:     "boleto.paid",
		TransactionID: "bol_tx_1",
		OccurredAt:    time.Now(),
	})
	require.NoError(t, err)
	header := signHookHeader(payload, "whsec_boleto")

	event, err := adapter.VerifyWebhook(payload, header)
	require.NoError(t, err)
	assert.Equal(t, payment.EventKindSucceeded, event.Kind)
	assert.Equal(t, "bol_tx_1", event.TransactionID)

	t.Run("tampered payload rejected", func(t *testing.T) {
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = 'X'
		_, err := adapter.VerifyWebhook(tampered, header)
		assert.Error(t, err)
	})
}
