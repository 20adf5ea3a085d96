package attachmentdownload

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"contentVersionId": {"type": "string", "pattern": "^068[0-9A-Za-z]{12}([0-9A-Za-z]{3})?$"}
	},
	"required": ["contentVersionId"],
	"additionalProperties": false
}`)
