// Package callable serves functions over the {"data"} / {"result"} HTTP protocol.
package callable

import (
	"bytes"
	"context"
	"encoding/json"

	"crm-functions/internal/common/auth"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/common/validation"
)

// Descriptor describes a function for routing, access control and the registry listing.
type Descriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Roles       []string         `json:"roles,omitempty"` // empty: any authenticated caller
	UsesCRM     bool             `json:"usesCrm"`
	ErrorCodes  []errs.ErrorCode `json:"errorCodes,omitempty"`
}

// Function is one callable handler.
type Function interface {
	Descriptor() Descriptor
	Schema() *validation.Schema
	Invoke(ctx context.Context, req *Request) (interface{}, error)
}

// Request is a verified, schema-checked invocation.
type Request struct {
	Function  string
	RequestID string
	Caller    *auth.Caller
	Data      json.RawMessage
	// CRM carries a caller-supplied CRM session, if any.
	CRM salesforce.ConnectOptions
}

// Decode unmarshals the payload into v and runs its validate tags.
func (r *Request) Decode(v interface{}) error {
	data := r.Data
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.NewValidationError("payload does not match the expected shape: " + err.Error())
	}
	if res := validation.ValidateStruct(v); !res.Valid {
		return errs.NewValidationError("input validation failed", res.GetErrorMessages()...)
	}
	return nil
}

// HasCallerCRMSession reports whether the caller sent its own CRM bearer token.
func (r *Request) HasCallerCRMSession() bool {
	return r.CRM.AccessToken != ""
}
