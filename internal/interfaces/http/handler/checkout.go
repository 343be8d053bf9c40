package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shop/backend/internal/application/checkout"
	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/interfaces/http/dto"
)

// CheckoutHandler handles payment initiation and inspection endpoints
type CheckoutHandler struct {
	BaseHandler
	service *checkout.Service
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(service *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// RegisterRoutes registers checkout routes on the given group
func (h *CheckoutHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders/:id/payments", h.InitiatePayment)
	rg.GET("/orders/:id/payments", h.ListOrderPayments)
	rg.GET("/payments/:id", h.GetPayment)
	rg.POST("/payments/:id/capture", h.CapturePayment)
}

// InitiatePaymentRequest is the request body for starting a payment
type InitiatePaymentRequest struct {
	Method string `json:"method" binding:"required,payment_method"`
	// Extra carries method-specific inputs such as a card token
	Extra map[string]string `json:"extra"`
}

// InitiatePayment starts a payment attempt for an order
func (h *CheckoutHandler) InitiatePayment(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	customerID, err := getCustomerID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	result, err := h.service.InitiatePayment(c.Request.Context(), checkout.InitiatePaymentCommand{
		OrderID:    orderID,
		CustomerID: customerID,
		Method:     payment.Method(req.Method),
		Extra:      req.Extra,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// CapturePaymentRequest is the request body for capturing a wallet payment
type CapturePaymentRequest struct {
	// PayerID is the payer reference the provider appends to the return URL
	PayerID string `json:"payer_id"`
}

// CapturePayment captures an approved wallet payment after the buyer
// returns from the provider
func (h *CheckoutHandler) CapturePayment(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	var req CapturePaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	customerID, err := getCustomerID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	paymentID, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	result, err := h.service.CaptureWalletPayment(c.Request.Context(), paymentID, customerID, req.PayerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetPayment returns a single payment attempt
func (h *CheckoutHandler) GetPayment(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	customerID, err := getCustomerID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	paymentID, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	result, err := h.service.GetPayment(c.Request.Context(), paymentID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ListOrderPayments returns all payment attempts for an order
func (h *CheckoutHandler) ListOrderPayments(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	customerID, err := getCustomerID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	results, err := h.service.ListOrderPayments(c.Request.Context(), orderID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, results)
}
