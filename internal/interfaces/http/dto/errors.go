package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeValidation = "ERR_VALIDATION"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
	ErrCodeOrderNotPayable = "ERR_ORDER_NOT_PAYABLE"
)

// Payment gateway error codes
const (
	ErrCodePaymentDeclined    = "ERR_PAYMENT_DECLINED"
	ErrCodeGatewayTimeout     = "ERR_GATEWAY_TIMEOUT"
	ErrCodeGatewayUnavailable = "ERR_GATEWAY_UNAVAILABLE"
	ErrCodeInvalidSignature   = "ERR_INVALID_SIGNATURE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:    http.StatusConflict,
	ErrCodeOrderNotPayable: http.StatusConflict,

	ErrCodePaymentDeclined:    http.StatusPaymentRequired,
	ErrCodeGatewayTimeout:     http.StatusGatewayTimeout,
	ErrCodeGatewayUnavailable: http.StatusBadGateway,
	ErrCodeInvalidSignature:   http.StatusBadRequest,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                 ErrCodeNotFound,
	"ALREADY_EXISTS":            ErrCodeAlreadyExists,
	"INVALID_INPUT":             ErrCodeBadRequest,
	"INVALID_STATE":             ErrCodeInvalidState,
	"INVALID_STATUS_TRANSITION": ErrCodeInvalidState,
	"INVALID_PAYMENT_STATUS":    ErrCodeInvalidState,
	"ORDER_NOT_PAYABLE":         ErrCodeOrderNotPayable,
	"ORDER_NOT_PAID":            ErrCodeInvalidState,
	"UNAUTHORIZED":              ErrCodeUnauthorized,
	"FORBIDDEN":                 ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":      ErrCodeConcurrencyConflict,
	"INVALID_METHOD":            ErrCodeBadRequest,
	"METHOD_NOT_CONFIGURED":     ErrCodeBadRequest,
	"UNKNOWN_PROVIDER":          ErrCodeNotFound,
}

// NormalizeErrorCode converts a domain error code to the API format
// Unknown codes are returned as-is
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
