package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	cerrors "github.com/edgeops/opsctl/pkg/errors"
	"github.com/edgeops/opsctl/pkg/serializer"
	"github.com/google/uuid"
)

// WriteError writes a JSON ErrorResponse. The request id is taken from the
// request context when the middleware has set one.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int,
	code cerrors.ErrorCode, message string, retryable bool, details map[string]interface{}) {

	requestID, _ := r.Context().Value(contextKeyRequestID).(string)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	errResp := ErrorResponse{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Retryable: retryable,
	}

	serializer.RespondJSON(w, statusCode, errResp)
}

// WriteErrorFromErr maps err onto an ErrorResponse. Structured errors keep
// their code, message and context; anything else becomes INTERNAL_ERROR
// with fallbackMessage. The cause is always reported under details.error.
func WriteErrorFromErr(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string, details map[string]interface{}) {
	code := cerrors.ErrCodeInternal
	message := fallbackMessage
	var ctxDetails map[string]any

	var se *cerrors.StructuredError
	switch {
	case stderrors.As(err, &se):
		code = se.Code
		message = se.Message
		ctxDetails = se.Context
		if se.Cause != nil {
			ctxDetails = mergeDetails(ctxDetails, map[string]any{"error": se.Cause.Error()})
		}
	case stderrors.Is(err, context.DeadlineExceeded):
		code = cerrors.ErrCodeTimeout
		ctxDetails = map[string]any{"error": err.Error()}
	default:
		ctxDetails = map[string]any{"error": err.Error()}
	}

	WriteError(w, r, HTTPStatusFromCode(code), code, message, retryableFromCode(code), mergeDetails(ctxDetails, details))
}

// HTTPStatusFromCode returns the HTTP status for an error code.
func HTTPStatusFromCode(code cerrors.ErrorCode) int {
	switch code {
	case cerrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case cerrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case cerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case cerrors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case cerrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case cerrors.ErrCodeUnavailable, cerrors.ErrCodeNoClusterContext:
		return http.StatusServiceUnavailable
	case cerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case cerrors.ErrCodeCollectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func retryableFromCode(code cerrors.ErrorCode) bool {
	switch code {
	case cerrors.ErrCodeTimeout,
		cerrors.ErrCodeUnavailable,
		cerrors.ErrCodeRateLimitExceeded,
		cerrors.ErrCodeInternal,
		cerrors.ErrCodeNoClusterContext,
		cerrors.ErrCodeCollectionFailed,
		cerrors.ErrCodeArchiveIO:
		return true
	default:
		return false
	}
}

// mergeDetails returns a merged copy of a and b with b winning on conflicts,
// or nil when both are empty.
func mergeDetails(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
