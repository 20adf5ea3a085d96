package pushtokenregister

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"token": {"type": "string", "minLength": 1, "maxLength": 4096},
		"platform": {"type": "string", "enum": ["android", "ios"]},
		"remove": {"type": "boolean"}
	},
	"required": ["token"],
	"additionalProperties": false
}`)
