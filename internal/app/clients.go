package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/clients/gcpspeech"
	"github.com/noah-isme/edubot-api/internal/clients/gemini"
	"github.com/noah-isme/edubot-api/internal/clients/openai"
	"github.com/noah-isme/edubot-api/internal/service"
	"github.com/noah-isme/edubot-api/pkg/cache"
	"github.com/noah-isme/edubot-api/pkg/config"
)

// Clients holds the external SDK clients. Model is nil when no provider could be configured.
// Redis is owned by the session repository, which closes it.
type Clients struct {
	Model        service.HostedModel
	Provider     string
	HasAPIKey    bool
	Transcribers []service.SpeechTranscriber
	Redis        *redis.Client

	closers []func() error
}

// Close releases every client holding a connection.
func (c *Clients) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	c.closers = nil
}

func wireClients(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Clients, error) {
	log.Info("wiring clients")
	clients := &Clients{Provider: cfg.LLM.Provider}

	var (
		geminiClient *gemini.Client
		openaiClient *openai.Client
	)

	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		clients.HasAPIKey = strings.TrimSpace(cfg.LLM.GeminiAPIKey) != ""
		if gemini.PlausibleAPIKey(cfg.LLM.GeminiAPIKey) {
			client, err := gemini.New(ctx, gemini.Config{
				APIKey:          cfg.LLM.GeminiAPIKey,
				Model:           cfg.LLM.GeminiModel,
				Temperature:     cfg.LLM.Temperature,
				MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			})
			if err != nil {
				log.Warn("gemini client unavailable", zap.Error(err))
			} else {
				geminiClient = client
				clients.Model = client
			}
		} else if clients.HasAPIKey {
			log.Warn("gemini api key does not look valid, running in fallback mode")
		}
	case config.ProviderOpenAI:
		clients.HasAPIKey = strings.TrimSpace(cfg.LLM.OpenAIAPIKey) != ""
		if clients.HasAPIKey {
			client, err := openai.New(openAIConfig(cfg))
			if err != nil {
				log.Warn("openai client unavailable", zap.Error(err))
			} else {
				openaiClient = client
				clients.Model = client
			}
		}
	case config.ProviderNone, "":
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	for _, name := range []string{cfg.Transcription.Primary, cfg.Transcription.Secondary} {
		switch name {
		case config.ProviderNone, "":
		case config.ProviderGemini:
			if geminiClient == nil && gemini.PlausibleAPIKey(cfg.LLM.GeminiAPIKey) {
				client, err := gemini.New(ctx, gemini.Config{APIKey: cfg.LLM.GeminiAPIKey, Model: cfg.LLM.GeminiModel})
				if err != nil {
					log.Warn("gemini transcriber unavailable", zap.Error(err))
					continue
				}
				geminiClient = client
			}
			if geminiClient != nil {
				clients.Transcribers = append(clients.Transcribers, geminiClient)
			}
		case config.ProviderOpenAI:
			if openaiClient == nil && strings.TrimSpace(cfg.LLM.OpenAIAPIKey) != "" {
				client, err := openai.New(openAIConfig(cfg))
				if err != nil {
					log.Warn("openai transcriber unavailable", zap.Error(err))
					continue
				}
				openaiClient = client
			}
			if openaiClient != nil {
				clients.Transcribers = append(clients.Transcribers, openaiClient)
			}
		case config.ProviderGCP:
			client, err := gcpspeech.New(ctx, gcpspeech.Config{
				CredentialsFile: cfg.Transcription.GCPCredentialsFile,
				LanguageCode:    cfg.Transcription.Language,
			})
			if err != nil {
				log.Warn("gcp speech transcriber unavailable", zap.Error(err))
				continue
			}
			clients.Transcribers = append(clients.Transcribers, client)
			clients.closers = append(clients.closers, client.Close)
		default:
			return nil, fmt.Errorf("unknown transcription provider %q", name)
		}
	}

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		clients.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	clients.Redis = rdb

	return clients, nil
}

func openAIConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:          cfg.LLM.OpenAIAPIKey,
		BaseURL:         cfg.LLM.OpenAIBaseURL,
		Model:           cfg.LLM.OpenAIModel,
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Language:        cfg.Transcription.Language,
	}
}
