package profileget

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"uid": {"type": "string", "minLength": 1, "maxLength": 128}
	},
	"additionalProperties": false
}`)
