package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(ErrCodeNotFound))
	assert.Equal(t, http.StatusPaymentRequired, GetHTTPStatus(ErrCodePaymentDeclined))
	assert.Equal(t, http.StatusGatewayTimeout, GetHTTPStatus(ErrCodeGatewayTimeout))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(ErrCodeOrderNotPayable))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("ERR_SOMETHING_ELSE"))
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeForbidden, NormalizeErrorCode("FORBIDDEN"))
	assert.Equal(t, ErrCodeInvalidState, NormalizeErrorCode("INVALID_STATUS_TRANSITION"))
	assert.Equal(t, "CUSTOM_CODE", NormalizeErrorCode("CUSTOM_CODE"))
}
