package gemini

import (
	"crop-claim-service/internal/models"

	"github.com/google/generative-ai-go/genai"
)

func ToGenAISchema(schema models.OutputSchema) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(schema.Fields))
	for _, f := range schema.Fields {
		properties[f.Name] = &genai.Schema{
			Type:        toGenAIType(f.Type),
			Description: f.Description,
		}
	}

	required := make([]string, len(schema.Required))
	copy(required, schema.Required)

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}

func toGenAIType(t models.SchemaType) genai.Type {
	switch t {
	case models.SchemaBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
