package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var seatNumberRgx = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{0,7}$`)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("seat_number", validateSeatNumber)

	return validator
}

// Seat identifiers are opaque to the engine; the format check only fends off
// junk like whitespace or lowercase duplicates of the same seat.
func validateSeatNumber(fl validator.FieldLevel) bool {
	return seatNumberRgx.MatchString(fl.Field().String())
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "e164":
		return "must be a valid international phone number"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", err.Param())
	case "max":
		return fmt.Sprintf("must contain at most %s item(s)", err.Param())
	case "unique":
		return "must not contain duplicates"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "seat_number":
		return "must be an uppercase alphanumeric seat identifier of at most 8 characters"
	default:
		return "is invalid"
	}
}
