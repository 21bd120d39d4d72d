// Package schemas validates survey artifacts against embedded JSON Schemas.
// Two shapes are covered: the generated survey document and the golden
// example seed files loaded into the retrieval index.
package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nvasquez/survey-generator/internal/types"
)

//go:embed survey_document.schema.json
var surveyDocumentSchema string

//go:embed golden_example.schema.json
var goldenExampleSchema string

// ValidationError reports schema violations with field paths.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violation at a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError reports a problem with the schema itself rather than the
// document under validation.
type SchemaLoadError struct {
	Schema  string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Schema, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Schema, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateSurveyJSON validates survey document JSON against the embedded
// schema. Returns *ValidationError on violations, nil when the document
// conforms.
func ValidateSurveyJSON(jsonContent string) error {
	return validateAgainst("survey_document", surveyDocumentSchema, jsonContent)
}

// ValidateSurveyDocument marshals a document and validates the result.
// Useful as a post-extraction shape check before scoring.
func ValidateSurveyDocument(doc *types.SurveyDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document for validation: %w", err)
	}
	return ValidateSurveyJSON(string(data))
}

// goldenExampleShell is the minimal decode needed to reach the nested survey.
type goldenExampleShell struct {
	Survey json.RawMessage `json:"survey"`
}

// ValidateGoldenExampleJSON validates a golden example seed document. The
// outer shell and the embedded survey are checked in two passes so survey
// violations carry survey-relative field paths.
func ValidateGoldenExampleJSON(jsonContent string) error {
	if err := validateAgainst("golden_example", goldenExampleSchema, jsonContent); err != nil {
		return err
	}

	var shell goldenExampleShell
	if err := json.Unmarshal([]byte(jsonContent), &shell); err != nil {
		return fmt.Errorf("failed to decode golden example: %w", err)
	}
	return ValidateSurveyJSON(string(shell.Survey))
}

// ValidateGoldenExampleFile validates a golden example seed file on disk.
func ValidateGoldenExampleFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden example file: %w", err)
	}
	if err := ValidateGoldenExampleJSON(string(data)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func validateAgainst(schemaName, schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Schema:  schemaName,
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
