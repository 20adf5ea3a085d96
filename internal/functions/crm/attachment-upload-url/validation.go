package attachmentuploadurl

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"fileName": {"type": "string", "minLength": 1, "maxLength": 255},
		"contentType": {"type": "string", "pattern": "^[a-z]+/[0-9A-Za-z.+-]+$", "maxLength": 255}
	},
	"required": ["fileName", "contentType"],
	"additionalProperties": false
}`)
