package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/upb/signal-admin/backend/models"
)

var (
	// validate is the singleton validator instance
	validate *validator.Validate
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.ParseRole(fl.Field().String()).IsValid()
	})
	_ = validate.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		switch models.SignalSeverity(fl.Field().String()) {
		case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
			return true
		}
		return false
	})
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		field := strings.ToLower(err.Field())

		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email", field)
		case "uuid", "uuid4":
			fields[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "url", "http_url":
			fields[field] = fmt.Sprintf("%s must be a valid URL", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "hexcolor":
			fields[field] = fmt.Sprintf("%s must be a hex color", field)
		case "role":
			fields[field] = fmt.Sprintf("%s must be one of: admin analyst user viewer", field)
		case "severity":
			fields[field] = fmt.Sprintf("%s must be one of: low medium high critical", field)
		default:
			fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return &ValidationError{
		Message: "Validation failed",
		Fields:  fields,
	}
}

// NewFieldError builds a ValidationError for a single field
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{
		Message: "Validation failed",
		Fields:  map[string]string{field: message},
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}
