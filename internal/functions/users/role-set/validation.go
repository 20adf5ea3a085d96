package roleset

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"uid": {"type": "string", "minLength": 1, "maxLength": 128},
		"role": {"type": "string", "enum": ["customer", "agent", "admin"]},
		"crmUserId": {"type": "string", "maxLength": 18},
		"crmUsername": {"type": "string", "maxLength": 255}
	},
	"required": ["uid", "role"],
	"additionalProperties": false
}`)
