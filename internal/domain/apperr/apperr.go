// Package apperr defines the error kinds shared by the account and trip
// services. Callers match kinds with errors.Is; the HTTP layer maps them to
// status codes.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrValidationFailed           = errors.New("validation failed")
	ErrUnsupportedMediaType       = errors.New("unsupported media type")
	ErrPasswordTooWeak            = errors.New("password too weak")
	ErrDuplicateIdentity          = errors.New("an account with this email or username already exists")
	ErrExternalIdentityUnverified = errors.New("identity provider has not verified this email")
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrAccountUnverified          = errors.New("account email not verified")
	ErrTokenExpiredOrInvalid      = errors.New("token expired or invalid")
	ErrNotFound                   = errors.New("not found")
	ErrPersistence                = errors.New("persistence failure")
	ErrUpstreamUnavailable        = errors.New("upstream service unavailable")
)

// FieldError is a single field-level violation.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in one request.
// It matches ErrValidationFailed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, rule, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule, Message: message}}}
}

// Fields returns the field violations in err, if any.
func Fields(err error) []FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
