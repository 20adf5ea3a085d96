package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proposalSchema = `{
  "type": "object",
  "required": ["proposalId", "meters"],
  "properties": {
    "proposalId": {"type": "string", "minLength": 15},
    "meters": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["pod"],
        "properties": {"pod": {"type": "string", "minLength": 1}}
      }
    }
  },
  "additionalProperties": false
}`

func TestSchema_Validate(t *testing.T) {
	schema := MustSchema(proposalSchema)

	tests := []struct {
		name       string
		doc        string
		valid      bool
		wantFields []string
	}{
		{
			name:  "valid payload",
			doc:   `{"proposalId":"a0B5g00000XyZ12","meters":[{"pod":"IT001E00000001"}]}`,
			valid: true,
		},
		{
			name:       "missing required",
			doc:        `{"meters":[{"pod":"x"}]}`,
			wantFields: []string{"proposalId"},
		},
		{
			name:       "nested required",
			doc:        `{"proposalId":"a0B5g00000XyZ12","meters":[{}]}`,
			wantFields: []string{"meters.0.pod"},
		},
		{
			name:       "extra property",
			doc:        `{"proposalId":"a0B5g00000XyZ12","meters":[{"pod":"x"}],"foo":1}`,
			wantFields: []string{"(root)"},
		},
		{
			name:       "null payload",
			doc:        ``,
			wantFields: []string{"(root)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := schema.Validate([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			for _, f := range tt.wantFields {
				assert.True(t, result.HasErrors(f), "expected error on %s, got %v", f, result.Errors)
			}
		})
	}
}

func TestSchema_InvalidJSON(t *testing.T) {
	_, err := MustSchema(proposalSchema).Validate([]byte(`{"proposalId":`))
	assert.Error(t, err)
}

func TestMustSchema_PanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() { MustSchema(`{"type": 12}`) })
}

type fileDescriptor struct {
	URL      string `json:"url" validate:"required,url"`
	FileName string `json:"fileName" validate:"required,max=255"`
}

type meterDescriptor struct {
	POD   string           `json:"pod" validate:"required"`
	Files []fileDescriptor `json:"files" validate:"dive"`
}

type payload struct {
	Meters []meterDescriptor `json:"meters" validate:"required,min=1,dive"`
}

func TestValidateStruct(t *testing.T) {
	ok := ValidateStruct(&payload{Meters: []meterDescriptor{{
		POD:   "IT001",
		Files: []fileDescriptor{{URL: "https://files.example.com/bill.pdf", FileName: "bill.pdf"}},
	}}})
	assert.True(t, ok.Valid)

	bad := ValidateStruct(&payload{Meters: []meterDescriptor{{
		Files: []fileDescriptor{{URL: "not a url", FileName: "bill.pdf"}},
	}}})
	require.False(t, bad.Valid)
	assert.True(t, bad.HasErrors("meters[0].pod"))
	assert.True(t, bad.HasErrors("meters[0].files[0].url"))
	assert.Contains(t, bad.GetErrorMessages(), "meters[0].pod: is required")
}
