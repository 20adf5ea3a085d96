package sessionrefresh

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"force": {"type": "boolean"}
	},
	"additionalProperties": false
}`)
