package opportunitieslist

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"stage": {"type": "string", "maxLength": 80},
		"limit": {"type": "integer", "minimum": 1, "maximum": 200}
	},
	"additionalProperties": false
}`)
