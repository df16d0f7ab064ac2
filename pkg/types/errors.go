package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies adapter and engine failures so the retry policy can
// decide retryability without string-matching platform messages.
type ErrorKind string

const (
	ErrKindAuth          ErrorKind = "auth"
	ErrKindRateLimit     ErrorKind = "rate_limit"
	ErrKindQuota         ErrorKind = "quota"
	ErrKindModelNotFound ErrorKind = "model_not_found"
	ErrKindContentFilter ErrorKind = "content_filter"
	ErrKindTimeout       ErrorKind = "timeout"
	ErrKindNetwork       ErrorKind = "network"
	ErrKindServer        ErrorKind = "server"
	ErrKindParse         ErrorKind = "parse"
	ErrKindValidation    ErrorKind = "validation"
	ErrKindCancelled     ErrorKind = "cancelled"
	ErrKindGeneric       ErrorKind = "generic"
)

// Retryable reports whether errors of this kind are worth retrying.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindNetwork, ErrKindTimeout, ErrKindRateLimit, ErrKindServer, ErrKindParse:
		return true
	default:
		return false
	}
}

// PlatformError is a classified failure from an AI platform adapter.
type PlatformError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// NewPlatformError creates a classified platform error.
func NewPlatformError(kind ErrorKind, message string, cause error) *PlatformError {
	return &PlatformError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the error kind from err, defaulting to generic.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrKindCancelled
	}
	return ErrKindGeneric
}

// ValidationError reports invalid diagnosis input. It fails fast and is
// never retried.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ErrExecutionNotFound is returned when an execution ID is unknown to both
// the in-memory registry and the persistence gateway.
var ErrExecutionNotFound = errors.New("execution not found")
