// Package errors provides the console's error taxonomy: transport failures,
// API rejections and local validation failures all normalise to StandardError.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNetwork                 ErrorCode = "NETWORK_ERROR"
	ErrCodeAPI                     ErrorCode = "API_ERROR"
	ErrCodeUnauthenticated         ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden               ErrorCode = "FORBIDDEN"
	ErrCodeNotFound                ErrorCode = "NOT_FOUND"
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeChecklistIncomplete     ErrorCode = "CHECKLIST_INCOMPLETE"
	ErrCodeRejectionReasonRequired ErrorCode = "REJECTION_REASON_REQUIRED"
	ErrCodeTransferTargetRequired  ErrorCode = "TRANSFER_TARGET_REQUIRED"
	ErrCodeFreezeActive            ErrorCode = "FREEZE_ACTIVE"
	ErrCodeNotImplemented          ErrorCode = "NOT_IMPLEMENTED"
	ErrCodeTransportFailed         ErrorCode = "TRANSPORT_FAILED"
	ErrCodeInvalidEvent            ErrorCode = "INVALID_EVENT"
	ErrCodeConfigInvalid           ErrorCode = "CONFIG_INVALID"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

// GenericMessage is shown when neither the server nor the validator supplied one.
const GenericMessage = "Something went wrong. Please try again."

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so sentinel comparisons work with
// errors.Is regardless of message or timestamp.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode returns the HTTP status recorded for API errors, or 0.
func (e *StandardError) StatusCode() int {
	if e.Metadata == nil {
		return 0
	}
	if v, ok := e.Metadata["status"].(int); ok {
		return v
	}
	return 0
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(operation, url string, err error) *StandardError {
	e := newError(ErrCodeNetwork, "Network error, check your connection", fmt.Sprintf("%s %s: %v", operation, url, err), true)
	e.Metadata = map[string]interface{}{"operation": operation, "url": url}
	e.cause = err
	return e
}

// NewAPIError converts a non-2xx response. The server message, when present,
// becomes the user-facing Message.
func NewAPIError(status int, serverMessage, body string) *StandardError {
	code := ErrCodeAPI
	switch status {
	case http.StatusUnauthorized:
		code = ErrCodeUnauthenticated
	case http.StatusForbidden:
		code = ErrCodeForbidden
	case http.StatusNotFound:
		code = ErrCodeNotFound
	}

	msg := serverMessage
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = GenericMessage
	}

	e := newError(code, msg, body, status >= 500)
	e.Metadata = map[string]interface{}{"status": status, "serverMessage": serverMessage}
	return e
}

// NewUnauthenticatedError is returned when no session is available.
func NewUnauthenticatedError(details string) *StandardError {
	return newError(ErrCodeUnauthenticated, "Please sign in to continue", details, false)
}

// NewValidationError creates a non-retryable client side validation error.
func NewValidationError(field, message string) *StandardError {
	e := newError(ErrCodeValidationFailed, message, "", false)
	e.Metadata = map[string]interface{}{"field": field}
	return e
}

// NewChecklistIncompleteError lists the checklist items still unchecked.
func NewChecklistIncompleteError(missing []string) *StandardError {
	e := newError(ErrCodeChecklistIncomplete, "Please complete all verification checks before approving", fmt.Sprintf("missing: %v", missing), false)
	e.Metadata = map[string]interface{}{"missing": missing}
	return e
}

// NewRejectionReasonRequiredError is returned by Reject with a blank reason.
func NewRejectionReasonRequiredError() *StandardError {
	return newError(ErrCodeRejectionReasonRequired, "Please provide a rejection reason", "", false)
}

// NewTransferTargetRequiredError is returned by Transfer without a target.
func NewTransferTargetRequiredError() *StandardError {
	return newError(ErrCodeTransferTargetRequired, "Please choose a staff member to transfer to", "", false)
}

// NewFreezeActiveError reports the remaining freeze period.
func NewFreezeActiveError(remaining time.Duration) *StandardError {
	e := newError(ErrCodeFreezeActive, fmt.Sprintf("Verification checks unlock in %s", remaining.Round(time.Second)), "", false)
	e.Metadata = map[string]interface{}{"remaining": remaining.String()}
	return e
}

// NewNotImplementedError marks features with no server persistence.
func NewNotImplementedError(feature string) *StandardError {
	return newError(ErrCodeNotImplemented, fmt.Sprintf("%s is not persisted by the server", feature), "", false)
}

// NewTransportError wraps a realtime transport failure.
func NewTransportError(transport string, err error) *StandardError {
	e := newError(ErrCodeTransportFailed, fmt.Sprintf("Realtime transport '%s' failed", transport), err.Error(), true)
	e.cause = err
	return e
}

// NewInvalidEventError reports a realtime frame that failed decoding or validation.
func NewInvalidEventError(details string) *StandardError {
	return newError(ErrCodeInvalidEvent, "Invalid realtime event", details, false)
}

// NewConfigError reports an invalid configuration field.
func NewConfigError(field, message string) *StandardError {
	e := newError(ErrCodeConfigInvalid, fmt.Sprintf("configuration error for %s: %s", field, message), "", false)
	e.Metadata = map[string]interface{}{"field": field}
	return e
}

// Normalize converts any error into a StandardError. Context cancellation is
// passed through untouched by callers before reaching here; if it does arrive
// it is classified as a network error.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return NewNetworkError("request", "", err)
	}
	e := newError(ErrCodeInternal, GenericMessage, err.Error(), false)
	e.cause = err
	return e
}

// Category groups codes into the network / api / validation taxonomy.
func Category(code ErrorCode) string {
	switch code {
	case ErrCodeNetwork, ErrCodeTransportFailed:
		return "network"
	case ErrCodeAPI, ErrCodeUnauthenticated, ErrCodeForbidden, ErrCodeNotFound:
		return "api"
	case ErrCodeValidationFailed, ErrCodeChecklistIncomplete, ErrCodeRejectionReasonRequired,
		ErrCodeTransferTargetRequired, ErrCodeFreezeActive, ErrCodeInvalidEvent, ErrCodeConfigInvalid:
		return "validation"
	default:
		return "internal"
	}
}

// UserMessage returns the best available human readable message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr := Normalize(err)
	if stdErr.Message == "" {
		return GenericMessage
	}
	return stdErr.Message
}

// HasCode reports whether err normalises to the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// Sentinels usable with errors.Is.
var (
	ErrUnauthenticated     = &StandardError{Code: ErrCodeUnauthenticated}
	ErrForbidden           = &StandardError{Code: ErrCodeForbidden}
	ErrNotFound            = &StandardError{Code: ErrCodeNotFound}
	ErrValidation          = &StandardError{Code: ErrCodeValidationFailed}
	ErrChecklistIncomplete = &StandardError{Code: ErrCodeChecklistIncomplete}
	ErrReasonRequired      = &StandardError{Code: ErrCodeRejectionReasonRequired}
	ErrTargetRequired      = &StandardError{Code: ErrCodeTransferTargetRequired}
	ErrFreezeActive        = &StandardError{Code: ErrCodeFreezeActive}
	ErrNotImplemented      = &StandardError{Code: ErrCodeNotImplemented}
	ErrInvalidEvent        = &StandardError{Code: ErrCodeInvalidEvent}
)
