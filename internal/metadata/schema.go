package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// metadataSchema is the required-keys contract for the metadata object.
// Chapter values use the general/detailed pair shape; the translation
// context builder depends on that split.
const metadataSchema = `{
	"type": "object",
	"properties": {
		"author(s)": {"type": "string"},
		"title": {"type": "string"},
		"language": {"type": "string"},
		"summary": {"type": "string"},
		"chapters": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": {
					"general": {"type": "string"},
					"detailed": {"type": "string"}
				},
				"required": ["general", "detailed"],
				"additionalProperties": false
			}
		},
		"target_language": {"type": "string"}
	},
	"required": ["author(s)", "title", "language", "summary", "chapters"],
	"additionalProperties": false
}`

var compileSchemaOnce = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("metadata.json", bytes.NewReader([]byte(metadataSchema))); err != nil {
		return nil, fmt.Errorf("failed to load metadata schema: %w", err)
	}
	return compiler.Compile("metadata.json")
})

// SchemaValidationError indicates a parsed metadata object violates the
// required-keys/types contract. It is fatal; the resolver does not
// self-repair schema violations.
type SchemaValidationError struct {
	Err error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("metadata does not match schema: %v", e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// Validate checks a normalized metadata object against the contract.
func Validate(obj map[string]any) error {
	schema, err := compileSchemaOnce()
	if err != nil {
		return fmt.Errorf("failed to compile metadata schema: %w", err)
	}
	if err := schema.Validate(obj); err != nil {
		return &SchemaValidationError{Err: err}
	}
	return nil
}

// ExtractionSchema is the structured-output declaration sent to providers
// that support pre-declared response schemas on the upload path.
var ExtractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"author(s)": map[string]any{
			"type":        "string",
			"description": "Author name(s), comma separated",
		},
		"title": map[string]any{
			"type": "string",
		},
		"language": map[string]any{
			"type":        "string",
			"description": "Source language of the book",
		},
		"summary": map[string]any{
			"type":        "string",
			"description": "Short whole-book summary",
		},
		"chapters": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"general":  map[string]any{"type": "string"},
					"detailed": map[string]any{"type": "string"},
				},
				"required":             []string{"general", "detailed"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"author(s)", "title", "language", "summary", "chapters"},
	"additionalProperties": false,
}

// MarshalIndented renders a metadata object for user-facing output.
func MarshalIndented(meta BookMetadata) (string, error) {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}
