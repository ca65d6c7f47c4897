// Package validator checks decoded JSON request bodies against the todo
// create and update shapes and turns them into typed inputs for the store.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"todo-api/internal/models"
)

// BodyField is the field name reported when the body as a whole is unusable.
const BodyField = "body"

// FieldError names one offending input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Invalid returns a ValidationError for a single field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Reason: reason}}}
}

var (
	createTodo = mustCompile("create.json", createSchema)
	updateTodo = mustCompile("update.json", updateSchema)
)

func mustCompile(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	compiler.Formats[completionDateFormat] = isCompletionDate
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// ValidateCreate validates the body of a create. Unknown keys are ignored.
func ValidateCreate(input any) (models.NewTodo, error) {
	obj, fields := object(createTodo, input)
	if len(fields) > 0 {
		return models.NewTodo{}, newValidationError(fields)
	}

	out := models.NewTodo{Title: obj["title"].(string)}
	if s, ok := obj["description"].(string); ok {
		out.Description = &s
	}
	return out, nil
}

// ValidateUpdate validates the body of a partial update. Only keys present in
// the input are marked as set; an explicit null is kept apart from an absent key.
func ValidateUpdate(input any) (models.TodoPatch, error) {
	obj, fields := object(updateTodo, input)
	if len(fields) > 0 {
		return models.TodoPatch{}, newValidationError(fields)
	}

	var patch models.TodoPatch
	if v, ok := obj["title"]; ok {
		patch.Title = models.Some(v.(string))
	}
	if v, ok := obj["description"]; ok {
		var desc *string
		if s, isStr := v.(string); isStr {
			desc = &s
		}
		patch.Description = models.Some(desc)
	}
	if v, ok := obj["completed"]; ok {
		patch.Completed = models.Some(v.(bool))
	}
	if v, ok := obj["completion_date"]; ok {
		var at *time.Time
		if s, isStr := v.(string); isStr {
			t, err := ParseTimestamp(s)
			if err != nil {
				return models.TodoPatch{}, Invalid("completion_date", err.Error())
			}
			at = &t
		}
		patch.CompletionDate = models.Some(at)
	}
	return patch, nil
}

const completionDateFormat = "completion-date"

// isCompletionDate accepts strings ParseTimestamp can read. Other types are
// left to the type keyword.
func isCompletionDate(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true
	}
	_, err := ParseTimestamp(s)
	return err == nil
}

var errTimestamp = errors.New("use a date (YYYY-MM-DD) or an RFC 3339 datetime")

// timestampLayouts are tried in order. Values without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp reads a completion date as date-only, RFC 3339 or a zone-less datetime.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errTimestamp
}

// object validates input against schema. The returned map is nil when input
// is not a JSON object; fields holds every schema violation found.
func object(schema *jsonschema.Schema, input any) (map[string]any, []FieldError) {
	var fields []FieldError
	if err := schema.Validate(input); err != nil {
		fields = schemaFields(err)
	}
	obj, _ := input.(map[string]any)
	if obj == nil && len(fields) == 0 {
		fields = append(fields, FieldError{Field: BodyField, Reason: "expected a JSON object"})
	}
	return obj, fields
}

func schemaFields(err error) []FieldError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldError{{Field: BodyField, Reason: err.Error()}}
	}
	var fields []FieldError
	collectLeaves(ve, &fields)
	if len(fields) == 0 {
		fields = append(fields, FieldError{Field: BodyField, Reason: ve.Message})
	}
	return fields
}

func newValidationError(fields []FieldError) *ValidationError {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return &ValidationError{Fields: fields}
}

// missingProperty pulls the quoted names out of a "missing properties" message.
var missingProperty = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)

func collectLeaves(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) == 0 {
		if strings.HasSuffix(ve.KeywordLocation, "/required") {
			for _, m := range missingProperty.FindAllStringSubmatch(ve.Message, -1) {
				*out = append(*out, FieldError{Field: strings.ReplaceAll(m[1], `\'`, "'"), Reason: "field required"})
			}
			return
		}
		reason := ve.Message
		if strings.HasSuffix(ve.KeywordLocation, "/format") {
			reason = errTimestamp.Error()
		}
		*out = append(*out, FieldError{Field: fieldName(ve.InstanceLocation), Reason: reason})
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}

// fieldName maps a JSON pointer such as "/title" to "title".
func fieldName(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return BodyField
	}
	if i := strings.IndexByte(pointer, '/'); i >= 0 {
		pointer = pointer[:i]
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(pointer)
}
