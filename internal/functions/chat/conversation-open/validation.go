package conversationopen

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"participantId": {"type": "string", "minLength": 1, "maxLength": 128}
	},
	"required": ["participantId"],
	"additionalProperties": false
}`)
