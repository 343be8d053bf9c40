package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/shop/backend/internal/domain/payment"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("payment_method", validPaymentMethod)
	}
}

// validPaymentMethod accepts only the supported payment methods
func validPaymentMethod(fl validator.FieldLevel) bool {
	return payment.Method(fl.Field().String()).IsValid()
}
