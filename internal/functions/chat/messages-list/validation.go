package messageslist

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"conversationId": {"type": "string", "minLength": 1, "maxLength": 800},
		"before": {"type": "string", "format": "date-time"},
		"beforeId": {"type": "string", "pattern": "^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$"},
		"limit": {"type": "integer", "minimum": 1, "maximum": 200}
	},
	"required": ["conversationId"],
	"dependencies": {"beforeId": ["before"]},
	"additionalProperties": false
}`)
