package imageuploadurl

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"conversationId": {"type": "string", "minLength": 1, "maxLength": 800},
		"contentType": {"type": "string", "enum": ["image/jpeg", "image/png", "image/gif", "image/webp", "image/heic"]}
	},
	"required": ["conversationId", "contentType"],
	"additionalProperties": false
}`)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}
