// pkg/registry/schema.go
package registry

import "encoding/json"

// FunctionRegistry is the published catalogue of callable functions that
// client teams generate their request types from.
type FunctionRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Functions   []Function `json:"functions"`
}

type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Roles       []string        `json:"roles"`
	UsesCRM     bool            `json:"usesCrm"`
	Enabled     bool            `json:"enabled"`
	TimeoutMs   int             `json:"timeoutMs"`
	InputSchema json.RawMessage `json:"inputSchema"`
	ErrorCodes  []string        `json:"errorCodes"`
}
