// Package openai adapts the OpenAI SDK to the assistant's hosted model capabilities.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/noah-isme/edubot-api/internal/models"
)

const (
	providerName = "openai"
	defaultModel = "gpt-4o-mini"
)

// ErrMissingAPIKey is returned when no key is configured.
var ErrMissingAPIKey = errors.New("openai api key is required")

// Config tunes generation. BaseURL targets OpenAI-compatible gateways.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Language        string
}

// Client implements conversation, vision and Whisper transcription.
type Client struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
	language    string
}

// New builds a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	language, _, _ := strings.Cut(cfg.Language, "-")
	return &Client{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxOutputTokens),
		language:    strings.ToLower(language),
	}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Chat sends the system instruction, history and message.
func (c *Client) Chat(ctx context.Context, system string, history []models.ChatMessage, message string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(message))
	return c.complete(ctx, messages)
}

// DescribeImage sends the prompt with the image as a data URL.
func (c *Client) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessageParts(openai.TextPart(prompt), openai.ImagePart(dataURL)),
	}
	return c.complete(ctx, messages)
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(openai.ChatModel(c.model)),
		Temperature: openai.F(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.F(c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai returned no text")
	}
	return text, nil
}

// Transcribe sends the audio to Whisper.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.FileParam(bytes.NewReader(audio), audioFilename(mimeType), mimeType),
		Model: openai.F(openai.AudioModelWhisper1),
	}
	if c.language != "" {
		params.Language = openai.F(c.language)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Whisper infers the container from the file extension.
func audioFilename(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		base = mimeType
	}
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "audio.wav"
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/ogg":
		return "audio.ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "audio.m4a"
	case "audio/flac":
		return "audio.flac"
	default:
		return "audio.webm"
	}
}
