// Package gemini adapts the Google Gen AI SDK to the assistant's hosted model capabilities.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/noah-isme/edubot-api/internal/models"
)

const (
	providerName          = "gemini"
	defaultModel          = "gemini-2.5-flash"
	transcriptionPrompt   = "Transcribe este audio en español. Responde únicamente con el texto transcrito, sin comentarios."
	apiKeyPrefix          = "AIza"
	minPlausibleKeyLength = 39
)

// ErrMissingAPIKey is returned when no key is configured.
var ErrMissingAPIKey = errors.New("gemini api key is required")

// Config tunes generation.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Client implements conversation, vision and transcription over Gemini.
type Client struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
}

// PlausibleAPIKey reports whether key looks like a Gemini API key.
func PlausibleAPIKey(key string) bool {
	return strings.HasPrefix(key, apiKeyPrefix) && len(key) >= minPlausibleKeyLength
}

// New builds a client. The SDK client needs no explicit close.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if !PlausibleAPIKey(cfg.APIKey) {
		return nil, fmt.Errorf("gemini api key does not look valid")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client:          client,
		model:           model,
		temperature:     float32(cfg.Temperature),
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

func (c *Client) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](c.temperature),
	}
	if c.maxOutputTokens > 0 {
		cfg.MaxOutputTokens = c.maxOutputTokens
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

// Chat sends the history plus message and returns the model text.
func (c *Client) Chat(ctx context.Context, system string, history []models.ChatMessage, message string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case models.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	return c.generate(ctx, contents, c.config(system))
}

// DescribeImage sends the prompt with the inline image.
func (c *Client) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return c.generate(ctx, contents, c.config(""))
}

// Transcribe asks the model to transcribe inline audio.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(transcriptionPrompt),
		genai.NewPartFromBytes(audio, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return c.generate(ctx, contents, &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)})
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}
