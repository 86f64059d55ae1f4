package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"crop-claim-service/internal/models"
	"crop-claim-service/internal/utils"
)

const (
	locationNotProvided = "Location not provided (Trust Score will be lower)"
	isoTimestampLayout  = "2006-01-02T15:04:05.000Z07:00"
	readableDateLayout  = "Monday, 2 January 2006"
	emptyResponseError  = "No response received from Gemini."
)

// InferenceProvider is the multimodal model: one image plus prompt in, JSON text out.
type InferenceProvider interface {
	Generate(ctx context.Context, imageBase64, mimeType, prompt string, schema models.OutputSchema) (string, error)
}

// PromptBuilder renders the instruction text around the capture metadata.
type PromptBuilder func(timestamp, readableDate, location string) string

type AnalysisService struct {
	provider    InferenceProvider
	buildPrompt PromptBuilder
	schema      models.OutputSchema
	now         func() time.Time
}

func NewAnalysisService(provider InferenceProvider, buildPrompt PromptBuilder) *AnalysisService {
	return &AnalysisService{
		provider:    provider,
		buildPrompt: buildPrompt,
		schema:      AnalysisOutputSchema(),
		now:         time.Now,
	}
}

// AnalysisOutputSchema describes the eight fields every diagnosis must carry.
func AnalysisOutputSchema() models.OutputSchema {
	return models.OutputSchema{
		Fields: []models.SchemaField{
			{Name: "disease", Type: models.SchemaString, Description: "The name of the identified crop disease, or 'Healthy' if none."},
			{Name: "severity", Type: models.SchemaString, Description: "The severity of the disease (e.g., Low, Moderate, High, Critical)."},
			{Name: "trust_score", Type: models.SchemaString, Description: "Confidence level of the analysis based on image clarity and metadata consistency (e.g., High, Medium, Low)."},
			{Name: "claim_eligible", Type: models.SchemaBoolean, Description: "Whether the crop is likely eligible for a claim under Pradhan Mantri Fasal Bima Yojana (PMFBY)."},
			{Name: "reason", Type: models.SchemaString, Description: "A detailed technical explanation for the insurance auditor."},
			{Name: "summary_for_speech", Type: models.SchemaString, Description: "A short, simple, 2-sentence summary of the diagnosis and eligibility in English, suitable for reading aloud to a farmer."},
			{Name: "remedy", Type: models.SchemaString, Description: "Step-by-step practical advice on how to treat the disease immediately."},
			{Name: "recommended_product", Type: models.SchemaString, Description: "Generic name of a fertilizer, pesticide, or organic solution to buy (e.g., 'Mancozeb 75 WP' or 'Neem Oil')."},
		},
		Required: append([]string(nil), models.AnalysisResultFields...),
	}
}

// LocationString is the GPS line of the prompt; the marker for a missing fix is
// what lets the model lower its trust score.
func LocationString(location *models.LocationData) string {
	if location == nil {
		return locationNotProvided
	}
	return "Latitude: " + strconv.FormatFloat(location.Latitude, 'f', -1, 64) +
		", Longitude: " + strconv.FormatFloat(location.Longitude, 'f', -1, 64)
}

// Analyze never touches session state; callers feed the outcome to an AnalysisLifecycle.
func (s *AnalysisService) Analyze(ctx context.Context, image []byte, mimeType string, location *models.LocationData) (*models.AnalysisResult, error) {
	if len(image) == 0 {
		return nil, &AnalysisError{Kind: TranscodingFailure, Message: "Could not read the selected image. Please choose it again."}
	}
	if mimeType == "" {
		mimeType = utils.DetectImageMIMEType(image)
	}
	imageBase64 := base64.StdEncoding.EncodeToString(image)

	now := s.now()
	prompt := s.buildPrompt(now.UTC().Format(isoTimestampLayout), now.Format(readableDateLayout), LocationString(location))

	text, err := s.provider.Generate(ctx, imageBase64, mimeType, prompt, s.schema)
	if err != nil {
		slog.Error("Crop analysis request failed", "error", err, "has_location", location != nil)
		return nil, newProviderError(err)
	}

	result, err := ParseAnalysisResponse(text, s.schema)
	if err != nil {
		slog.Warn("Crop analysis response rejected", "error", err, "response_length", len(text))
		return nil, err
	}

	slog.Info("Crop analysis completed",
		"disease", result.Disease,
		"severity", result.Severity,
		"trust_score", result.TrustScore,
		"claim_eligible", result.ClaimEligible)
	return result, nil
}

// ParseAnalysisResponse accepts a response only when every required field is
// present, non-null and of its declared type. Nothing is defaulted.
func ParseAnalysisResponse(text string, schema models.OutputSchema) (*models.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newContractError(emptyResponseError)
	}

	if !json.Valid([]byte(text)) {
		return nil, newContractError("The analysis response was not valid JSON.")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		ae := newContractError("The analysis response was not a JSON object.")
		ae.Err = err
		return nil, ae
	}
	if fields == nil {
		return nil, newContractError("The analysis response was empty.")
	}

	types := make(map[string]models.SchemaType, len(schema.Fields))
	for _, f := range schema.Fields {
		types[f.Name] = f.Type
	}

	for _, name := range schema.Required {
		raw, ok := fields[name]
		if !ok {
			return nil, newContractError("The analysis response is missing the %q field.", name)
		}
		if string(raw) == "null" {
			return nil, newContractError("The analysis response has no value for %q.", name)
		}
		if !matchesType(raw, types[name]) {
			return nil, newContractError("The analysis response has the wrong type for %q.", name)
		}
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		ae := newContractError("The analysis response could not be read.")
		ae.Err = err
		return nil, ae
	}
	return &result, nil
}

func matchesType(raw json.RawMessage, t models.SchemaType) bool {
	switch t {
	case models.SchemaBoolean:
		var b bool
		return json.Unmarshal(raw, &b) == nil
	default:
		var s string
		return json.Unmarshal(raw, &s) == nil
	}
}
