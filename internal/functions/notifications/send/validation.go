package send

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"uids": {
			"type": "array",
			"minItems": 1,
			"maxItems": 500,
			"items": {"type": "string", "minLength": 1, "maxLength": 128}
		},
		"title": {"type": "string", "minLength": 1, "maxLength": 200},
		"body": {"type": "string", "minLength": 1, "maxLength": 2000},
		"data": {"type": "object", "additionalProperties": {"type": "string"}},
		"email": {"type": "boolean"}
	},
	"required": ["uids", "title", "body"],
	"additionalProperties": false
}`)
