// Package grammar checks raw list-query parameters against the query JSON
// Schema and parses them into a typed filter.Payload.
package grammar

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/atlekbai/query_compiler/internal/filter"
)

//go:embed query.schema.json
var querySchema string

// ErrSchemaViolation is matched by every *SchemaViolation.
var ErrSchemaViolation = errors.New("schema violation")

// SchemaViolation reports a payload that does not match the query grammar.
// Details holds the validator diagnostics.
type SchemaViolation struct {
	Details []string
}

func (e *SchemaViolation) Error() string {
	return "schema violation: " + strings.Join(e.Details, "; ")
}

func (e *SchemaViolation) Is(target error) bool { return target == ErrSchemaViolation }

func violation(format string, args ...any) *SchemaViolation {
	return &SchemaViolation{Details: []string{fmt.Sprintf(format, args...)}}
}

// Validator validates list-query parameters against a compiled JSON Schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the embedded query schema.
func NewValidator() (*Validator, error) {
	return NewValidatorFromString(querySchema)
}

// NewValidatorFromString compiles a caller-supplied schema document.
func NewValidatorFromString(schemaDoc string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("invalid query schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

var defaultValidator = sync.OnceValues(NewValidator)

// Validate checks the parameters with the embedded schema, which is compiled
// once per process.
func Validate(rawFilter, rawSort, rawRange, rawFields any) (*filter.Payload, error) {
	v, err := defaultValidator()
	if err != nil {
		return nil, err
	}
	return v.Validate(rawFilter, rawSort, rawRange, rawFields)
}

// Validate normalizes each parameter (JSON text or structured value), checks the
// combined document against the schema and returns the typed payload.
func (v *Validator) Validate(rawFilter, rawSort, rawRange, rawFields any) (*filter.Payload, error) {
	doc, err := normalizeAll(rawFilter, rawSort, rawRange, rawFields)
	if err != nil {
		return nil, err
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(plain(doc)))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, &SchemaViolation{Details: details}
	}

	payload, err := parsePayload(doc)
	if err != nil {
		return nil, err
	}
	if _, _, _, err := payload.Range.Bounds(); err != nil {
		return nil, err
	}
	return payload, nil
}

// Parse normalizes and parses the parameters without the schema check, for
// payloads that come from a trusted source.
func Parse(rawFilter, rawSort, rawRange, rawFields any) (*filter.Payload, error) {
	doc, err := normalizeAll(rawFilter, rawSort, rawRange, rawFields)
	if err != nil {
		return nil, err
	}
	return parsePayload(doc)
}

func normalizeAll(rawFilter, rawSort, rawRange, rawFields any) (object, error) {
	params := []struct {
		name  string
		raw   any
		empty any
	}{
		{"filter", rawFilter, object{}},
		{"sort", rawSort, []any{}},
		{"range", rawRange, []any{}},
		{"fields", rawFields, []any{}},
	}

	doc := make(object, 0, len(params))
	for _, p := range params {
		v, err := normalize(p.raw, p.empty)
		if err != nil {
			return nil, violation("%s: invalid JSON: %v", p.name, err)
		}
		doc = append(doc, member{key: p.name, value: v})
	}
	return doc, nil
}
