package gateway

// paypalTokenResponse is the OAuth2 client_credentials grant response
type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// paypalAmount is a money amount in PayPal's string format
type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// paypalPurchaseUnit describes one unit of a PayPal order
type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	Description string       `json:"description,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

// paypalCreateOrderRequest is the body for POST /v2/checkout/orders
type paypalCreateOrderRequest struct {
	Intent             string                    `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit      `json:"purchase_units"`
	ApplicationContext *paypalApplicationContext `json:"application_context,omitempty"`
}

// paypalApplicationContext carries the redirect URLs for buyer approval
type paypalApplicationContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

// paypalLink is a HATEOAS link in PayPal responses
type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// paypalOrderResponse is the response of order create/get/capture calls
type paypalOrderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

// paypalRefundRequest is the body for POST /v2/payments/captures/{id}/refund
type paypalRefundRequest struct {
	Amount       *paypalAmount `json:"amount,omitempty"`
	NoteToPayer  string        `json:"note_to_payer,omitempty"`
	InvoiceID    string        `json:"invoice_id,omitempty"`
	CustomID     string        `json:"custom_id,omitempty"`
	ReasonDetail string        `json:"reason,omitempty"`
}

// paypalRefundResponse is the refund call response
type paypalRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// paypalErrorResponse is PayPal's error body
type paypalErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// PayPal order statuses
const (
	paypalOrderCreated       = "CREATED"
	paypalOrderApproved      = "APPROVED"
	paypalOrderCompleted     = "COMPLETED"
	paypalOrderVoided        = "VOIDED"
	paypalOrderPayerActionRq = "PAYER_ACTION_REQUIRED"
)
