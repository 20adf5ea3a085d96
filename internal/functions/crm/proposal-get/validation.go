package proposalget

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"proposalId": {"type": "string", "minLength": 15, "maxLength": 18}
	},
	"required": ["proposalId"],
	"additionalProperties": false
}`)
