package conversationslist

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"limit": {"type": "integer", "minimum": 1, "maximum": 200}
	},
	"additionalProperties": false
}`)
