package conversationread

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"conversationId": {"type": "string", "minLength": 1, "maxLength": 800}
	},
	"required": ["conversationId"],
	"additionalProperties": false
}`)
