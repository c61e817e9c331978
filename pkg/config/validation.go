package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-verification/pkg/utils"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator is a function that validates configuration and returns errors
type Validator func() ValidationErrors

// Validate runs multiple validators and combines their errors
func Validate(validators ...Validator) error {
	var allErrors ValidationErrors
	for _, validator := range validators {
		allErrors = append(allErrors, validator()...)
	}
	if len(allErrors) > 0 {
		return allErrors
	}
	return nil
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RequireNonEmpty validates that a string field is not blank
func RequireNonEmpty(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}

// RequirePositive validates that an integer field is positive
func RequirePositive(field string, value int) *ValidationError {
	if value <= 0 {
		return invalid(field, "must be positive, got %d", value)
	}
	return nil
}

// RequireNonNegative validates that an integer field is non-negative
func RequireNonNegative(field string, value int) *ValidationError {
	if value < 0 {
		return invalid(field, "must be non-negative, got %d", value)
	}
	return nil
}

// RequirePositiveDuration validates that a duration field is positive
func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return invalid(field, "must be positive, got %v", value)
	}
	return nil
}

// RequireInRange validates that an integer is within [min, max]
func RequireInRange(field string, value, min, max int) *ValidationError {
	if value < min || value > max {
		return invalid(field, "must be between %d and %d, got %d", min, max, value)
	}
	return nil
}

// RequireValidURL validates that a string is an absolute URL
func RequireValidURL(field, value string) *ValidationError {
	if value == "" {
		return invalid(field, "is required")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return invalid(field, "invalid URL: %v", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return invalid(field, "URL must have a scheme and host (http:// or https://)")
	}
	return nil
}

// RequireValidEmail validates that a string is an email address
func RequireValidEmail(field, value string) *ValidationError {
	if value == "" {
		return invalid(field, "is required")
	}
	if err := utils.ValidateVar(value, "email"); err != nil {
		return invalid(field, "invalid email format")
	}
	return nil
}

// RequireValidPort validates that a port number is valid (1-65535)
func RequireValidPort(field string, value uint16) *ValidationError {
	if value == 0 {
		return invalid(field, "port must be between 1 and 65535")
	}
	return nil
}

// RequireOneOf validates that a value is one of the allowed values
func RequireOneOf(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalid(field, "must be one of %v, got %q", allowed, value)
}

// RequireMinLength validates that a string has a minimum length
func RequireMinLength(field, value string, minLength int) *ValidationError {
	if len(value) < minLength {
		return invalid(field, "must be at least %d characters, got %d", minLength, len(value))
	}
	return nil
}

// CollectErrors drops the nil results and returns the rest
func CollectErrors(errors ...*ValidationError) ValidationErrors {
	var result ValidationErrors
	for _, err := range errors {
		if err != nil {
			result = append(result, *err)
		}
	}
	return result
}
