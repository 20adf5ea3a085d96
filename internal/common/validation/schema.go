package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for a function payload.
type Schema struct {
	raw      string
	compiled *gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewSchema compiles a JSON schema document.
func NewSchema(raw string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{raw: raw, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level schema literals.
func MustSchema(raw string) *Schema {
	s, err := NewSchema(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Raw returns the schema document as written.
func (s *Schema) Raw() string {
	return s.raw
}

// Validate checks a JSON document against the schema.
func (s *Schema) Validate(document []byte) (*ValidationResult, error) {
	if len(document) == 0 {
		document = []byte("null")
	}
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	out := &ValidationResult{Valid: false}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   schemaField(re),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	sortErrors(out.Errors)
	return out, nil
}

// schemaField reports the offending property. Required-property errors are
// raised on the parent so the property name is appended.
func schemaField(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if field == "(root)" {
				return prop
			}
			return field + "." + prop
		}
	}
	return field
}

// ============================
// Struct validation
// ============================

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct runs `validate` tags on a decoded payload.
func ValidateStruct(v interface{}) *ValidationResult {
	err := structValidator.Struct(v)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationResult{Valid: false, Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID",
		}}}
	}

	out := &ValidationResult{Valid: false}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   trimNamespace(fe.Namespace()),
			Message: describeTag(fe),
			Code:    strings.ToUpper(fe.Tag()),
		})
	}
	sortErrors(out.Errors)
	return out
}

// trimNamespace drops the root struct name: "Input.meters[0].pod" -> "meters[0].pod".
func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "http_url":
		return "must be a valid URL"
	case "email":
		return "must be a valid e-mail address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func sortErrors(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
}

// GetErrorMessages returns "field: message" strings for every error.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return messages
}

// HasErrors checks if a specific field has validation errors
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
