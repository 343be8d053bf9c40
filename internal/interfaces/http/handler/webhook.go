package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shop/backend/internal/application/reconcile"
	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/domain/shared"
)

// WebhookHandler handles provider webhook endpoints
// These endpoints are called by payment providers and authenticate by
// payload signature, not by JWT
type WebhookHandler struct {
	BaseHandler
	service         *reconcile.Service
	maxPayloadBytes int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(service *reconcile.Service, maxPayloadBytes int64) *WebhookHandler {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = 64 << 10
	}
	return &WebhookHandler{service: service, maxPayloadBytes: maxPayloadBytes}
}

// RegisterRoutes registers the webhook route on the given group
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/:provider", h.HandleWebhook)
}

// WebhookResponse is the acknowledgement returned to the provider
type WebhookResponse struct {
	Received      bool   `json:"received"`
	Outcome       string `json:"outcome,omitempty"`
	EventID       string `json:"event_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

// HandleWebhook verifies and applies one provider webhook delivery
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	// Providers sign the raw body, read it before any parsing
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayloadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{
			Received: false,
			Message:  "Failed to read request body",
		})
		return
	}
	if int64(len(payload)) > h.maxPayloadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookResponse{
			Received: false,
			Message:  "Payload too large",
		})
		return
	}

	result, err := h.service.ProcessWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		h.respondWebhookError(c, err)
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Received:      true,
		Outcome:       string(result.Outcome),
		EventID:       result.EventID,
		TransactionID: result.TransactionID,
	})
}

// respondWebhookError maps processing errors to provider-facing statuses.
// 4xx tells the provider the delivery itself is unacceptable, 5xx asks
// it to retry later.
func (h *WebhookHandler) respondWebhookError(c *gin.Context, err error) {
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		// Signature and payload verification failures
		c.JSON(http.StatusBadRequest, WebhookResponse{
			Received: false,
			Message:  "Webhook verification failed",
		})
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case "UNKNOWN_PROVIDER":
			c.JSON(http.StatusNotFound, WebhookResponse{
				Received: false,
				Message:  "Unknown provider",
			})
		default:
			c.JSON(http.StatusConflict, WebhookResponse{
				Received: false,
				Message:  "Webhook could not be applied",
			})
		}
		return
	}

	c.JSON(http.StatusInternalServerError, WebhookResponse{
		Received: false,
		Message:  "Webhook processing failed",
	})
}
