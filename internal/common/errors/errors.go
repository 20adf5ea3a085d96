// Package errors provides standardized error handling for callable functions.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrCodeSessionExpired    ErrorCode = "SESSION_EXPIRED"
	ErrCodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	ErrCodeFunctionDisabled  ErrorCode = "FUNCTION_DISABLED"
	ErrCodeCRMNotConfigured  ErrorCode = "CRM_NOT_CONFIGURED"
	ErrCodeCRMAPIError       ErrorCode = "CRM_API_ERROR"
	ErrCodeDocumentStore     ErrorCode = "DOCUMENT_STORE_ERROR"
	ErrCodeBlobStore         ErrorCode = "BLOB_STORE_ERROR"
	ErrCodeFileDownload      ErrorCode = "FILE_DOWNLOAD_FAILED"
	ErrCodeNotificationSend  ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeTimeout           ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// New creates an error with an explicit code and message.
func New(code ErrorCode, message, details string) *StandardError {
	return newError(code, message, details)
}

// NewUnauthenticatedError is returned when the caller has no valid ID token.
func NewUnauthenticatedError(details string) *StandardError {
	return newError(ErrCodeUnauthenticated, "The function must be called while authenticated", details)
}

// NewSessionExpiredError signals the client to run its re-login flow.
func NewSessionExpiredError(details string) *StandardError {
	return newError(ErrCodeSessionExpired, "CRM session expired", details)
}

// NewPermissionDeniedError creates a non-retryable authorization error.
func NewPermissionDeniedError(details string) *StandardError {
	return newError(ErrCodePermissionDenied, "Caller is not allowed to perform this operation", details)
}

// NewValidationError creates a validation error. fieldErrors end up in metadata.
func NewValidationError(details string, fieldErrors ...string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Invalid request payload", details)
	if len(fieldErrors) > 0 {
		e.WithMetadata("fieldErrors", fieldErrors)
	}
	return e
}

// NewNotFoundError creates a non-retryable not found error.
func NewNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), fmt.Sprintf("id: %s", id))
}

func NewAlreadyExistsError(resource, id string) *StandardError {
	return newError(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource), fmt.Sprintf("id: %s", id))
}

func NewFunctionDisabledError(name string) *StandardError {
	return newError(ErrCodeFunctionDisabled, "Function is disabled", fmt.Sprintf("function: %s", name))
}

// NewCRMNotConfiguredError is returned when no CRM session can be obtained at all.
func NewCRMNotConfiguredError(details string) *StandardError {
	return newError(ErrCodeCRMNotConfigured, "CRM integration is not configured", details)
}

func NewCRMAPIError(operation string, err error) *StandardError {
	return newError(ErrCodeCRMAPIError, "CRM API request failed", fmt.Sprintf("operation: %s, error: %s", operation, errText(err)))
}

func NewDocumentStoreError(operation string, err error) *StandardError {
	return newError(ErrCodeDocumentStore, "Document store operation failed", fmt.Sprintf("operation: %s, error: %s", operation, errText(err)))
}

func NewBlobStoreError(operation string, err error) *StandardError {
	return newError(ErrCodeBlobStore, "Blob store operation failed", fmt.Sprintf("operation: %s, error: %s", operation, errText(err)))
}

func NewFileDownloadError(source string, err error) *StandardError {
	return newError(ErrCodeFileDownload, "File download failed", fmt.Sprintf("source: %s, error: %s", source, errText(err)))
}

// NewNotificationSendFailedError creates a notification delivery error for a channel (push, email).
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSend, "Notification delivery failed", fmt.Sprintf("channel: %s, error: %s", channel, errText(err)))
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed", fmt.Sprintf("index: %s, error: %s", index, errText(err)))
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), errText(err))
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errText(err))
}

func errText(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

// ==========================
// 3. Normalization
// ==========================

// AsStandardError unwraps err into a StandardError. Deadline and cancellation
// errors become TIMEOUT_ERROR; anything else unrecognized is INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return NewTimeoutError("function", err)
	}
	return NewInternalError(err)
}

// HasCode reports whether err normalizes to the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// ==========================
// 4. Protocol Mapping
// ==========================

// callableStatus maps error codes to the callable protocol status strings.
var callableStatus = map[ErrorCode]string{
	ErrCodeUnauthenticated:   "unauthenticated",
	ErrCodeSessionExpired:    "unauthenticated",
	ErrCodePermissionDenied:  "permission-denied",
	ErrCodeValidationFailed:  "invalid-argument",
	ErrCodeNotFound:          "not-found",
	ErrCodeAlreadyExists:     "already-exists",
	ErrCodeFunctionDisabled:  "unavailable",
	ErrCodeCRMNotConfigured:  "failed-precondition",
	ErrCodeCRMAPIError:       "internal",
	ErrCodeDocumentStore:     "internal",
	ErrCodeBlobStore:         "internal",
	ErrCodeFileDownload:      "unavailable",
	ErrCodeNotificationSend:  "unavailable",
	ErrCodeSearchQueryFailed: "internal",
	ErrCodeTimeout:           "deadline-exceeded",
	ErrCodeInternal:          "internal",
}

var httpStatus = map[string]int{
	"unauthenticated":     http.StatusUnauthorized,
	"permission-denied":   http.StatusForbidden,
	"invalid-argument":    http.StatusBadRequest,
	"not-found":           http.StatusNotFound,
	"already-exists":      http.StatusConflict,
	"failed-precondition": http.StatusBadRequest,
	"unavailable":         http.StatusServiceUnavailable,
	"deadline-exceeded":   http.StatusGatewayTimeout,
	"internal":            http.StatusInternalServerError,
}

// CallableStatus returns the protocol status for a code.
func CallableStatus(code ErrorCode) string {
	if s, ok := callableStatus[code]; ok {
		return s
	}
	return "internal"
}

// HTTPStatus returns the HTTP status code a callable error is served with.
func HTTPStatus(code ErrorCode) int {
	return httpStatus[CallableStatus(code)]
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode reports whether a client may retry the same call.
// Nothing is retried server side.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeDocumentStore,
		ErrCodeBlobStore,
		ErrCodeFileDownload,
		ErrCodeNotificationSend,
		ErrCodeSearchQueryFailed,
		ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnauthenticated || code == ErrCodeSessionExpired || code == ErrCodePermissionDenied:
		return "AUTH"
	case strings.HasPrefix(codeStr, "CRM"):
		return "CRM"
	case code == ErrCodeDocumentStore || code == ErrCodeBlobStore || code == ErrCodeFileDownload:
		return "STORAGE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || code == ErrCodeNotFound || code == ErrCodeAlreadyExists:
		return "REQUEST"
	default:
		return "OTHER"
	}
}
