package messagessearch

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 2, "maxLength": 256},
		"conversationId": {"type": "string", "minLength": 1, "maxLength": 800},
		"from": {"type": "integer", "minimum": 0, "maximum": 1000},
		"size": {"type": "integer", "minimum": 1, "maximum": 100}
	},
	"required": ["query"],
	"additionalProperties": false
}`)
