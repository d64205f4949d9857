package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/ecosphere/internal/apperror"
)

// Form payloads. Emptiness is left to the services, which own the messages
// the pages show for it; the validator checks shape.
type usernameForm struct {
	// Usernames end up in /avatar/{username}, so no URL delimiters.
	Username string `validate:"omitempty,max=32,excludesall=/?#%"`
}

type postForm struct {
	Title   string `validate:"required"`
	Content string `validate:"required"`
}

// formValidator wraps go-playground/validator and returns apperror
// validation errors.
type formValidator struct {
	v *validator.Validate
}

func newFormValidator() *formValidator {
	return &formValidator{v: validator.New()}
}

// validate checks form and reports the first failing field.
func (fv *formValidator) validate(form any) error {
	err := fv.v.Struct(form)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return apperror.ValidationFailed(strings.ToLower(fe.Field()), fieldError(fe))
	}
	return fmt.Errorf("handler: validating form: %w", err)
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "excludesall":
		return fmt.Sprintf("%s must not contain any of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
