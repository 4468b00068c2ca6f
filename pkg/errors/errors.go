// Package errors provides structured error types with stable error codes.
//
// Codes are used by the CLI to pick exit behavior and by the HTTP server to map
// failures onto status codes. Wrap keeps the original cause reachable through
// errors.Is / errors.As.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// ErrCodeNoClusterContext means no reachable cluster or kubeconfig context was found.
	ErrCodeNoClusterContext ErrorCode = "NO_CLUSTER_CONTEXT"
	// ErrCodeInvalidRequest means the caller supplied an invalid argument combination.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrCodeArchiveIO means the bundle archive could not be written.
	ErrCodeArchiveIO ErrorCode = "ARCHIVE_IO"
	// ErrCodeCollectionFailed means no service produced any content.
	ErrCodeCollectionFailed ErrorCode = "COLLECTION_FAILED"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeMethodNotAllowed   ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable        ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StructuredError carries a code, a human readable message, an optional cause
// and optional context details.
type StructuredError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a StructuredError without a cause.
func New(code ErrorCode, message string) *StructuredError {
	return &StructuredError{Code: code, Message: message}
}

// Wrap creates a StructuredError around cause.
func Wrap(code ErrorCode, message string, cause error) *StructuredError {
	return &StructuredError{Code: code, Message: message, Cause: cause}
}

// WrapWithContext creates a StructuredError around cause with additional details.
func WrapWithContext(code ErrorCode, message string, cause error, context map[string]any) *StructuredError {
	return &StructuredError{Code: code, Message: message, Cause: cause, Context: context}
}

// CodeOf returns the code of the first StructuredError in err's chain,
// or an empty code when there is none.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err's chain contains a StructuredError with code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
