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

func newPayPalTestServer(t *testing.T, orderHandler http.HandlerFunc) (*httptest.Server, *PayPalAdapter) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		json.NewEncoder(w).Encode(paypalTokenResponse{
			AccessToken: "test-token",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	})
	mux.HandleFunc("/", orderHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	adapter := NewPayPalAdapter(&config.PayPalConfig{
		BaseURL:       srv.URL,
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		WebhookSecret: "whsec_paypal",
		ReturnURL:     "https://shop.example/paypal/return",
		CancelURL:     "https://shop.example/paypal/cancel",
		Timeout:       5 * time.Second,
	}, zap.NewNop())
	return srv, adapter
}

func TestPayPalAdapterCreateCharge(t *testing.T) {
	_, adapter := newPayPalTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body paypalCreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "199.90", body.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "BRL", body.PurchaseUnits[0].Amount.CurrencyCode)

		json.NewEncoder(w).Encode(paypalOrderResponse{
			ID:     "PAY-123",
			Status: paypalOrderCreated,
			Links: []paypalLink{
				{Href: "https://paypal.example/approve/PAY-123", Rel: "approve", Method: "GET"},
			},
		})
	})

	amount, _ := valueobject.NewMoneyFromFloat(199.90, "BRL")
	result, err := adapter.CreateCharge(context.Background(), payment.ChargeRequest{
		PaymentID:   uuid.New(),
		OrderNumber: "ORD-2024-0001",
		Amount:      amount,
		Method:      payment.MethodWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-123", result.TransactionID)
	assert.Equal(t, payment.StatusProcessing, result.Status)
	assert.Equal(t, "https://paypal.example/approve/PAY-123", result.Data["approval_url"])
}

func TestPayPalAdapterCaptureOrder(t *testing.T) {
	_, adapter := newPayPalTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders/PAY-123/capture", r.URL.Path)
		json.NewEncoder(w).Encode(paypalOrderResponse{ID: "PAY-123", Status: paypalOrderCompleted})
	})

	status, err := adapter.CaptureOrder(context.Background(), "PAY-123", "PAYER-9")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, status)
}

func TestPayPalAdapterDeclinedCharge(t *testing.T) {
	_, adapter := newPayPalTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(paypalErrorResponse{Name: "INSTRUMENT_DECLINED"})
	})

	amount, _ := valueobject.NewMoneyFromFloat(10, "BRL")
	_, err := adapter.CreateCharge(context.Background(), payment.ChargeRequest{
		PaymentID:   uuid.New(),
		OrderNumber: "ORD-1",
		Amount:      amount,
		Method:      payment.MethodWallet,
	})
	require.Error(t, err)

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, payment.GatewayErrDeclined, gwErr.Code)
}

func TestPayPalAdapterVerifyWebhook(t *testing.T) {
	adapter := NewPayPalAdapter(&config.PayPalConfig{
		WebhookSecret: "whsec_paypal",
		Timeout:       time.Second,
	}, zap.NewNop())

	payload := []byte(`{"event_id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","transaction_id":"PAY-123","occurred_at":"2024-05-01T10:00:00Z"}`)

	event, err := adapter.VerifyWebhook(payload, signHookHeader(payload, "whsec_paypal"))
	require.NoError(t, err)
	assert.Equal(t, payment.EventKindSucceeded, event.Kind)
	assert.Equal(t, "WH-1", event.EventID)
	assert.Equal(t, "PAY-123", event.TransactionID)

	t.Run("bad signature rejected", func(t *testing.T) {
		_, err := adapter.VerifyWebhook(payload, signHookHeader(payload, "wrong"))
		assert.Error(t, err)
	})

	t.Run("replayed delivery rejected", func(t *testing.T) {
		stale := signHookHeaderAt(payload, "whsec_paypal", time.Now().Add(-time.Hour))
		_, err := adapter.VerifyWebhook(payload, stale)
		assert.Error(t, err)
	})

	t.Run("unknown event type is ignored", func(t *testing.T) {
		other := []byte(`{"event_id":"WH-2","event_type":"BILLING.PLAN.CREATED","transaction_id":"X"}`)
		event, err := adapter.VerifyWebhook(other, signHookHeader(other, "whsec_paypal"))
		require.NoError(t, err)
		assert.Equal(t, payment.EventKindIgnored, event.Kind)
	})
}
