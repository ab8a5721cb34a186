package llm

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed prompts/schema.json
var extractionSchemaJSON string

// ExtractionSchema validates extracted lead data against the embedded
// JSON schema. Compile it once at startup with LoadExtractionSchema.
type ExtractionSchema struct {
	schema *jsonschema.Schema
}

// LoadExtractionSchema compiles the embedded extraction schema.
func LoadExtractionSchema() (*ExtractionSchema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", strings.NewReader(extractionSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add extraction schema resource: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile extraction schema: %w", err)
	}
	return &ExtractionSchema{schema: schema}, nil
}

// Validate checks data against the schema. Violations are returned as
// strings, not errors, so callers can carry them on ExtractionResult.
func (s *ExtractionSchema) Validate(data map[string]any) (bool, []string) {
	err := s.schema.Validate(data)
	if err == nil {
		return true, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return false, []string{err.Error()}
	}
	return false, flattenValidationError(ve)
}

// flattenValidationError collects leaf violation messages with their
// instance locations.
func flattenValidationError(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, ve.Message)}
	}
	var out []string
	for _, cause := range ve.Causes {
		out = append(out, flattenValidationError(cause)...)
	}
	return out
}
