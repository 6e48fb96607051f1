package validator

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)

// New returns a validator with the engine's custom rules registered:
// "phone" for E.164-ish numbers and "timezone_name" for IANA zone names.
func New() (*validator.Validate, error) {
	v := validator.New()

	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register phone rule: %w", err)
	}

	if err := v.RegisterValidation("timezone_name", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, fmt.Errorf("register timezone rule: %w", err)
	}

	return v, nil
}
