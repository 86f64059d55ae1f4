package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"crop-claim-service/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	Client    *genai.Client
	FlashName string
}

func NewGenAIClient(ctx context.Context, apiKey, flashModelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}

	return &GeminiClient{
		Client:    client,
		FlashName: flashModelName,
	}, nil
}

// NewGenAIClients builds one client per API key.
func NewGenAIClients(ctx context.Context, apiKeys []string, flashModelName string) ([]*GeminiClient, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no Gemini API keys configured")
	}

	clients := make([]*GeminiClient, 0, len(apiKeys))
	for i, key := range apiKeys {
		c, err := NewGenAIClient(ctx, key, flashModelName)
		if err != nil {
			for _, created := range clients {
				created.Close()
			}
			return nil, fmt.Errorf("client[%d]: %w", i, err)
		}
		clients = append(clients, c)
	}
	return clients, nil
}

func (g *GeminiClient) Close() error {
	return g.Client.Close()
}

// Provider sends one image plus prompt to Gemini and returns the raw JSON text.
type Provider struct {
	selector          *GeminiClientSelector
	temperature       float32
	systemInstruction string
}

func NewProvider(selector *GeminiClientSelector, temperature float32) *Provider {
	return &Provider{
		selector:          selector,
		temperature:       temperature,
		systemInstruction: SystemInstruction,
	}
}

// Generate returns the provider's text verbatim apart from markdown fences; an empty
// string means the model produced no text, which is left for the caller to judge.
func (p *Provider) Generate(ctx context.Context, imageBase64, mimeType, prompt string, schema models.OutputSchema) (string, error) {
	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode image base64: %w", err)
	}

	var text string
	err = p.selector.TryAllClients(ctx, func(client *GeminiClient, clientIdx int) error {
		resp, err := client.generate(ctx, p.newModelConfig(schema), imageData, mimeType, prompt)
		if err != nil {
			return err
		}
		text = resp
		return nil
	})
	if err != nil {
		return "", err
	}

	return text, nil
}

type modelConfig struct {
	temperature       float32
	systemInstruction string
	schema            *genai.Schema
}

func (p *Provider) newModelConfig(schema models.OutputSchema) modelConfig {
	return modelConfig{
		temperature:       p.temperature,
		systemInstruction: p.systemInstruction,
		schema:            ToGenAISchema(schema),
	}
}

func (g *GeminiClient) generate(ctx context.Context, cfg modelConfig, imageData []byte, mimeType, prompt string) (string, error) {
	// a model per request: GenerativeModel carries mutable config and is shared otherwise
	model := g.Client.GenerativeModel(g.FlashName)
	model.SetTemperature(cfg.temperature)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = cfg.schema
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(cfg.systemInstruction)}}

	slog.Info("Sending crop diagnosis request",
		"model", g.FlashName,
		"prompt_length", len(prompt),
		"image_bytes", len(imageData),
		"mime_type", mimeType)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{
			MIMEType: mimeType,
			Data:     imageData,
		},
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return cleanJSONResponse(responseText(resp)), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// cleanJSONResponse strips a ```json fence if the model added one anyway.
func cleanJSONResponse(aiResponse string) string {
	aiResponse = strings.TrimSpace(aiResponse)
	if strings.HasPrefix(aiResponse, "```") {
		aiResponse = strings.TrimPrefix(aiResponse, "```json")
		aiResponse = strings.TrimPrefix(aiResponse, "```")
		aiResponse = strings.TrimSuffix(aiResponse, "```")
	}
	return strings.TrimSpace(aiResponse)
}
