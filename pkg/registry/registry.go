// pkg/registry/registry.go
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var categories = map[string]bool{
	"crm":           true,
	"users":         true,
	"chat":          true,
	"notifications": true,
	"maintenance":   true,
}

func LoadRegistry(path string) (*FunctionRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg FunctionRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Save writes reg as indented JSON, creating parent directories.
func Save(path string, reg *FunctionRegistry) error {
	reg.Sort()
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Sort orders functions by name.
func (r *FunctionRegistry) Sort() {
	sort.Slice(r.Functions, func(i, j int) bool { return r.Functions[i].Name < r.Functions[j].Name })
}

// Validate reports duplicate names, unknown categories and schemas that
// are not JSON objects.
func (r *FunctionRegistry) Validate() error {
	var problems []string
	seen := make(map[string]bool, len(r.Functions))
	for _, fn := range r.Functions {
		if fn.Name == "" {
			problems = append(problems, "function with empty name")
			continue
		}
		if seen[fn.Name] {
			problems = append(problems, fmt.Sprintf("%s: duplicate name", fn.Name))
		}
		seen[fn.Name] = true

		if !strings.HasPrefix(fn.Name, fn.Category+".") {
			problems = append(problems, fmt.Sprintf("%s: name does not start with category %q", fn.Name, fn.Category))
		}
		if !categories[fn.Category] {
			problems = append(problems, fmt.Sprintf("%s: unknown category %q", fn.Name, fn.Category))
		}
		var schema map[string]interface{}
		if err := json.Unmarshal(fn.InputSchema, &schema); err != nil || schema == nil {
			problems = append(problems, fmt.Sprintf("%s: inputSchema is not a JSON object", fn.Name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problems: %s", len(problems), strings.Join(problems, "; "))
	}
	return nil
}

// Change is one difference between two registries.
type Change struct {
	Name string
	Kind string // added, removed, changed
}

// Diff lists the functions that differ between old and current. Version
// and LastUpdated are ignored.
func Diff(old, current *FunctionRegistry) []Change {
	before := index(old)
	after := index(current)

	var changes []Change
	for name, fn := range after {
		prev, ok := before[name]
		switch {
		case !ok:
			changes = append(changes, Change{Name: name, Kind: "added"})
		case !equal(prev, fn):
			changes = append(changes, Change{Name: name, Kind: "changed"})
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			changes = append(changes, Change{Name: name, Kind: "removed"})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Name < changes[j].Name })
	return changes
}

func index(r *FunctionRegistry) map[string]Function {
	out := make(map[string]Function)
	if r == nil {
		return out
	}
	for _, fn := range r.Functions {
		out[fn.Name] = fn
	}
	return out
}

func equal(a, b Function) bool {
	sa, sb := compact(a.InputSchema), compact(b.InputSchema)
	a.InputSchema, b.InputSchema = nil, nil
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return bytes.Equal(ja, jb) && bytes.Equal(sa, sb)
}

func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
