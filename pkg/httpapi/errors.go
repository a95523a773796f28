// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package httpapi

import (
	"errors"
	"net/http"
	"time"

	cnserrors "github.com/aiven/astacus/pkg/errors"
	"github.com/google/uuid"
)

// ErrorResponse represents the structured error body every node and
// coordinator handler returns on failure.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId"`
	Timestamp time.Time      `json:"timestamp"`
	Retryable bool           `json:"retryable"`
}

// WriteError writes an ErrorResponse body with the given status code.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int,
	code cnserrors.ErrorCode, message string, retryable bool, details map[string]any) {

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

	RespondJSON(w, statusCode, errResp)
}

// HTTPStatusFromCode maps a canonical error code to an HTTP status. This
// keeps transport-layer semantics centralized for every handler in node and
// coordinator alike.
func HTTPStatusFromCode(code cnserrors.ErrorCode) int {
	switch code {
	case cnserrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case cnserrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case cnserrors.ErrCodeNotFound:
		return http.StatusNotFound
	case cnserrors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case cnserrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case cnserrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case cnserrors.ErrCodeTimeout:
		// Prefer 504 for upstream timeouts and internal deadline exceeded.
		return http.StatusGatewayTimeout
	case cnserrors.ErrCodeLockConflict:
		return http.StatusConflict
	case cnserrors.ErrCodeLockOwnerMismatch:
		return http.StatusForbidden
	case cnserrors.ErrCodeExpiredOperation:
		return http.StatusGone
	case cnserrors.ErrCodeOperationIDMismatch:
		return http.StatusNotFound
	case cnserrors.ErrCodeCompressionOrEncryptionRequired:
		return http.StatusBadRequest
	case cnserrors.ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

func retryableFromCode(code cnserrors.ErrorCode) bool {
	switch code {
	case cnserrors.ErrCodeInvalidRequest,
		cnserrors.ErrCodeUnauthorized,
		cnserrors.ErrCodeNotFound,
		cnserrors.ErrCodeMethodNotAllowed,
		cnserrors.ErrCodeLockConflict,
		cnserrors.ErrCodeLockOwnerMismatch,
		cnserrors.ErrCodeExpiredOperation,
		cnserrors.ErrCodeOperationIDMismatch,
		cnserrors.ErrCodeCompressionOrEncryptionRequired:
		return false
	case cnserrors.ErrCodeTimeout,
		cnserrors.ErrCodeUnavailable,
		cnserrors.ErrCodeRateLimitExceeded,
		cnserrors.ErrCodeTransport,
		cnserrors.ErrCodeInternal:
		return true
	}

	// Codes not listed above, ErrCodeStepFailed among them, are reported
	// as not retryable.
	return false
}

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

// WriteErrorFromErr writes an ErrorResponse based on a canonical structured
// error. If err is not a *cnserrors.StructuredError, it falls back to
// INTERNAL.
func WriteErrorFromErr(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string, extraDetails map[string]any) {
	if err == nil {
		WriteError(w, r, http.StatusInternalServerError, cnserrors.ErrCodeInternal,
			fallbackMessage, true, extraDetails)
		return
	}

	var se *cnserrors.StructuredError
	if errors.As(err, &se) {
		msg := se.Message
		if msg == "" {
			msg = fallbackMessage
		}

		details := mergeDetails(se.Context, extraDetails)
		if se.Cause != nil {
			details = mergeDetails(details, map[string]any{"error": se.Cause.Error()})
		}

		WriteError(w, r, HTTPStatusFromCode(se.Code), se.Code, msg, retryableFromCode(se.Code), details)
		return
	}

	WriteError(w, r, http.StatusInternalServerError, cnserrors.ErrCodeInternal,
		fallbackMessage, true, mergeDetails(extraDetails, map[string]any{"error": err.Error()}))
}
