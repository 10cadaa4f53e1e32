package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var ErrMalformedEvent = errors.New("malformed event")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("presence_state", func(fl validator.FieldLevel) bool {
		return PresenceState(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks struct tags and wraps failures in ErrMalformedEvent.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}
