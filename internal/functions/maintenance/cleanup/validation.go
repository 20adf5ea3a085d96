package cleanup

import "crm-functions/internal/common/validation"

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"retentionDays": {"type": "integer", "minimum": 1, "maximum": 3650},
		"dryRun": {"type": "boolean"}
	},
	"additionalProperties": false
}`)
