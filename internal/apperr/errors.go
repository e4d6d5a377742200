package apperr

import (
	"fmt"
	"strings"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed input.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func Validation(msg string, fields ...FieldError) *ValidationError {
	return &ValidationError{Message: msg, Fields: fields}
}

// NotFoundError is returned when a booking, patient, provider or other
// resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// IntegrationError wraps a failure of an external adapter call.
type IntegrationError struct {
	Adapter string
	Op      string
	Err     error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Adapter, e.Op, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

func Integration(adapter, op string, err error) *IntegrationError {
	return &IntegrationError{Adapter: adapter, Op: op, Err: err}
}

// AuditWriteError wraps a failure to persist an audit entry.
type AuditWriteError struct {
	Action string
	Err    error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("write audit entry %q: %v", e.Action, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// AuthError covers missing, invalid or expired credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func Unauthenticated(msg string) *AuthError {
	return &AuthError{Message: msg}
}

// AuthorizationError is returned when the caller's role is not allowed.
type AuthorizationError struct {
	Required []string
	Current  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q not in [%s]", e.Current, strings.Join(e.Required, ", "))
}

func Forbidden(current string, required ...string) *AuthorizationError {
	return &AuthorizationError{Required: required, Current: current}
}
