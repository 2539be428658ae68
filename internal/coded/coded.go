// Package coded provides classified errors carrying stable string codes.
// Callers branch on the code rather than on message text, which keeps the
// failure contract stable across message rewording.
package coded

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers.
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidIdentityInput = "INVALID_IDENTITY_INPUT"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeMalformedJSON        = "MALFORMED_JSON"
)

// Error is a failure classified by a stable machine-readable code. Field is
// set when the failure is attributable to a single named input field.
type Error struct {
	Code    string
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q)", e.Code, e.Message, e.Field)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a coded error without a field attribution.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewField creates a coded error attributed to a named field.
func NewField(code, field, message string) *Error {
	return &Error{Code: code, Field: field, Message: message}
}

// CodeOf returns the stable code carried by err, or "" when err is not a
// coded error.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}

	return ""
}

// FieldOf returns the field attribution carried by err, or "".
func FieldOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Field
	}

	return ""
}
