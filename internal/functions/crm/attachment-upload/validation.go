package attachmentupload

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"recordId": {"type": "string", "minLength": 15, "maxLength": 18},
		"fileName": {"type": "string", "minLength": 1, "maxLength": 255},
		"title": {"type": "string", "maxLength": 255},
		"contentBase64": {"type": "string", "minLength": 1},
		"blobKey": {"type": "string", "minLength": 1, "maxLength": 1024}
	},
	"required": ["recordId", "fileName"],
	"oneOf": [
		{"required": ["contentBase64"]},
		{"required": ["blobKey"]}
	],
	"additionalProperties": false
}`)
