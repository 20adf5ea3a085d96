package proposalmeterscreate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/validation"
)

var inputSchema = validation.MustSchema(`{
	"type": "object",
	"properties": {
		"proposalId": {"type": "string", "minLength": 15, "maxLength": 18},
		"requestId": {"type": "string", "minLength": 1, "maxLength": 100},
		"meters": {
			"type": "array",
			"minItems": 1,
			"maxItems": 50,
			"items": {
				"type": "object",
				"properties": {
					"pod": {"type": "string", "minLength": 1, "maxLength": 40},
					"name": {"type": "string", "maxLength": 80},
					"annualConsumption": {"type": "string", "pattern": "^\\s*[0-9]+([.,][0-9]+)?\\s*$"},
					"contractedPower": {"type": "string", "pattern": "^\\s*[0-9]+([.,][0-9]+)?\\s*$"},
					"tariff": {"type": "string", "maxLength": 40},
					"files": {
						"type": "array",
						"maxItems": 20,
						"items": {
							"type": "object",
							"properties": {
								"url": {"type": "string", "pattern": "^https?://"},
								"fileName": {"type": "string", "minLength": 1, "maxLength": 255},
								"title": {"type": "string", "maxLength": 255}
							},
							"required": ["url", "fileName"]
						}
					}
				},
				"required": ["pod"]
			}
		}
	},
	"required": ["proposalId", "meters"],
	"additionalProperties": false
}`)

// parseDecimal reads a non-negative decimal string; a comma is accepted as
// the decimal separator. Empty input yields ok=false.
func parseDecimal(field, raw string) (d decimal.Decimal, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false, nil
	}
	d, err = decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%s: %q is not a decimal number", field, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, false, fmt.Errorf("%s: must not be negative", field)
	}
	return d, true, nil
}

// checkMeters validates numeric fields and duplicate PODs before any CRM call.
func checkMeters(meters []MeterInput) error {
	var problems []string
	seen := make(map[string]int, len(meters))
	for i, m := range meters {
		pod := normalizePOD(m.POD)
		if prev, dup := seen[pod]; dup {
			problems = append(problems, fmt.Sprintf("meters[%d].pod: duplicates meters[%d]", i, prev))
		}
		seen[pod] = i

		if _, _, err := parseDecimal("annualConsumption", m.AnnualConsumption); err != nil {
			problems = append(problems, fmt.Sprintf("meters[%d].%s", i, err.Error()))
		}
		if _, _, err := parseDecimal("contractedPower", m.ContractedPower); err != nil {
			problems = append(problems, fmt.Sprintf("meters[%d].%s", i, err.Error()))
		}
	}
	if len(problems) > 0 {
		return errs.NewValidationError("invalid meters", problems...)
	}
	return nil
}

func normalizePOD(pod string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pod), " ", ""))
}
