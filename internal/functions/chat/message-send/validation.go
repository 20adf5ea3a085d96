package messagesend

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"conversationId": {"type": "string", "minLength": 1, "maxLength": 800},
		"text": {"type": "string"},
		"imageKey": {"type": "string", "minLength": 1, "maxLength": 512}
	},
	"required": ["conversationId"],
	"anyOf": [
		{"required": ["text"], "properties": {"text": {"minLength": 1}}},
		{"required": ["imageKey"]}
	],
	"additionalProperties": false
}`)
