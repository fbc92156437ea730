package api

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Payment addresses are bech32-style, 0zk1-prefixed
var payAddrPattern = regexp.MustCompile(`^0zk1[a-z0-9]{8,}$`)

// CustomValidator wraps the validator instance
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new custom validator with the payaddr rule
// registered for payment address fields.
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("payaddr", func(fl validator.FieldLevel) bool {
		return payAddrPattern.MatchString(fl.Field().String())
	})
	return &CustomValidator{validator: v}
}

// Validate validates a struct. The error is returned as-is so handlers
// decide the status code and envelope.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
