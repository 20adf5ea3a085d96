package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	errs "crm-functions/internal/common/errors"
)

// APIErrorItem is one entry of the CRM error array.
type APIErrorItem struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields,omitempty"`
}

// APIError is a non-2xx CRM response.
type APIError struct {
	Operation  string
	StatusCode int
	Items      []APIErrorItem
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Items) > 0 {
		parts := make([]string, 0, len(e.Items))
		for _, it := range e.Items {
			parts = append(parts, fmt.Sprintf("%s: %s", it.ErrorCode, it.Message))
		}
		return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, e.Body)
}

// HasCode reports whether any item carries the CRM error code.
func (e *APIError) HasCode(codes ...string) bool {
	for _, it := range e.Items {
		for _, c := range codes {
			if it.ErrorCode == c {
				return true
			}
		}
	}
	return false
}

func newAPIError(operation string, status int, body []byte) *APIError {
	apiErr := &APIError{Operation: operation, StatusCode: status, Body: truncate(string(body), 512)}

	var items []APIErrorItem
	if err := json.Unmarshal(body, &items); err == nil {
		apiErr.Items = items
		return apiErr
	}

	// OAuth endpoints answer with a single object.
	var oauthErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		apiErr.Items = []APIErrorItem{{ErrorCode: oauthErr.Error, Message: oauthErr.Description}}
	}
	return apiErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ClassifyError maps a CRM failure to a StandardError.
func ClassifyError(operation string, err error) *errs.StandardError {
	if err == nil {
		return nil
	}

	var stdErr *errs.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.HasCode("INVALID_SESSION_ID"):
			return errs.NewSessionExpiredError(apiErr.Error())
		case apiErr.StatusCode == http.StatusNotFound || apiErr.HasCode("NOT_FOUND", "ENTITY_IS_DELETED"):
			return errs.New(errs.ErrCodeNotFound, "CRM record not found", apiErr.Error())
		case apiErr.HasCode("DUPLICATE_VALUE", "DUPLICATES_DETECTED"):
			return errs.New(errs.ErrCodeAlreadyExists, "CRM record already exists", apiErr.Error())
		case apiErr.StatusCode == http.StatusForbidden || apiErr.HasCode("INSUFFICIENT_ACCESS", "INSUFFICIENT_ACCESS_OR_READONLY"):
			return errs.NewPermissionDeniedError(apiErr.Error())
		case apiErr.StatusCode == http.StatusBadRequest:
			return errs.NewValidationError(apiErr.Error(), apiErr.fieldErrors()...)
		default:
			return errs.NewCRMAPIError(operation, apiErr)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errs.NewTimeoutError("crm", err)
	}
	return errs.NewCRMAPIError(operation, err)
}

func (e *APIError) fieldErrors() []string {
	var out []string
	for _, it := range e.Items {
		for _, f := range it.Fields {
			out = append(out, fmt.Sprintf("%s: %s", f, it.Message))
		}
	}
	return out
}
