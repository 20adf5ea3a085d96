package registry

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *FunctionRegistry {
	return &FunctionRegistry{
		Version: "1.0.0",
		Functions: []Function{
			{Name: "users.profile.get", Category: "users", Enabled: true, TimeoutMs: 60000, InputSchema: json.RawMessage(`{"type":"object"}`)},
			{Name: "crm.proposal.get", Category: "crm", UsesCRM: true, Enabled: true, TimeoutMs: 60000, InputSchema: json.RawMessage(`{"type": "object"}`)},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "function-registry.json")
	require.NoError(t, Save(path, sample()))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Functions, 2)
	assert.Equal(t, "crm.proposal.get", reg.Functions[0].Name, "functions are sorted")
	assert.NoError(t, reg.Validate())
	assert.Empty(t, Diff(sample(), reg), "formatting of schemas is ignored")
}

func TestValidate(t *testing.T) {
	reg := sample()
	reg.Functions = append(reg.Functions,
		Function{Name: "users.profile.get", Category: "users", InputSchema: json.RawMessage(`{}`)},
		Function{Name: "billing.run", Category: "billing", InputSchema: json.RawMessage(`[]`)},
	)
	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users.profile.get: duplicate name")
	assert.Contains(t, err.Error(), `billing.run: unknown category "billing"`)
	assert.Contains(t, err.Error(), "billing.run: inputSchema is not a JSON object")
}

func TestDiff(t *testing.T) {
	old := sample()
	current := sample()
	current.Functions[0].Enabled = false
	current.Functions = current.Functions[:1]
	current.Functions = append(current.Functions, Function{Name: "chat.messages.search", Category: "chat"})

	assert.Equal(t, []Change{
		{Name: "chat.messages.search", Kind: "added"},
		{Name: "crm.proposal.get", Kind: "removed"},
		{Name: "users.profile.get", Kind: "changed"},
	}, Diff(old, current))
}
