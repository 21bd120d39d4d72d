// Package llm - extractor.go provides generic LLM-based structured extraction.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
// It provides a reusable way to define what information to extract from text.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "RFQProfile")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map[string]string"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	// System description
	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	// Output schema
	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	// Instructions
	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Extract information directly from the text, do not invent or summarize.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	// Input text
	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// --- Predefined Schemas ---

// RFQProfileSchema returns the extraction schema for free-text survey RFQs.
// Extracts the research topic, target audience, objectives, and constraints
// that retrieval and planning steps work from.
func RFQProfileSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "RFQProfile",
		Description: `You are an expert survey methodologist. Your task is to read a free-text request for a survey (RFQ) and extract its research intent.
IMPORTANT: Preserve the requester's wording for topic and objectives where possible.
EXCLUDE: Greetings, signatures, pricing/contract talk, and anything unrelated to what the survey should measure.`,
		Fields: []SchemaField{
			{
				Name:        "topic",
				Type:        "\"string\"",
				Description: "The subject the survey investigates, in one phrase",
				Required:    true,
			},
			{
				Name:        "audience",
				Type:        "\"string\"",
				Description: "Who should answer the survey (segment, role, demographic)",
				Required:    false,
			},
			{
				Name:        "objectives",
				Type:        "[\"string\"]",
				Description: "Research questions or decisions the requester wants answered - copy each verbatim",
				Required:    true,
			},
			{
				Name:        "constraints",
				Type:        "[\"string\"]",
				Description: "Stated limits: length, channels, regions, compliance requirements",
				Required:    false,
			},
			{
				Name:        "target_question_count",
				Type:        "number",
				Description: "Requested number of questions if the RFQ states one, else omit",
				Required:    false,
			},
			{
				Name:        "tone",
				Type:        "\"string\"",
				Description: "Requested register (e.g., 'formal', 'conversational')",
				Required:    false,
			},
			{
				Name:        "language",
				Type:        "\"string\"",
				Description: "Language the survey should be written in, if stated",
				Required:    false,
			},
		},
	}
}
