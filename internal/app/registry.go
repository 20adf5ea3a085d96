package app

import (
	"encoding/json"
	"time"

	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	"crm-functions/pkg/registry"
)

// Registry describes fns as the published function catalogue.
func Registry(cfg *config.Config, fns []callable.Function) *registry.FunctionRegistry {
	reg := &registry.FunctionRegistry{
		Version:     cfg.App.Version,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Functions:   make([]registry.Function, 0, len(fns)),
	}
	for _, fn := range fns {
		d := fn.Descriptor()
		fc := config.GetFunctionConfig(cfg, d.Name)

		entry := registry.Function{
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Roles:       d.Roles,
			UsesCRM:     d.UsesCRM,
			Enabled:     fc.Enabled,
			TimeoutMs:   fc.Timeout,
			InputSchema: json.RawMessage(`{}`),
			ErrorCodes:  make([]string, 0, len(d.ErrorCodes)),
		}
		if entry.Roles == nil {
			entry.Roles = []string{}
		}
		if s := fn.Schema(); s != nil {
			entry.InputSchema = json.RawMessage(s.Raw())
		}
		for _, code := range d.ErrorCodes {
			entry.ErrorCodes = append(entry.ErrorCodes, string(code))
		}
		reg.Functions = append(reg.Functions, entry)
	}
	reg.Sort()
	return reg
}
