package app

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/repository"
	"github.com/noah-isme/edubot-api/internal/service"
	"github.com/noah-isme/edubot-api/pkg/config"
	"github.com/noah-isme/edubot-api/pkg/export"
	"github.com/noah-isme/edubot-api/pkg/jobs"
)

// Services groups the long-lived services behind the HTTP handlers.
type Services struct {
	Auth          *service.AuthService
	Metrics       *service.MetricsService
	Transcription *service.TranscriptionService
	Sessions      *service.SessionService
	Reports       *service.ReportService

	sessionRepo  *repository.SessionRepository
	sessionStore *service.AsyncSessionStore
}

func wireServices(ctx context.Context, cfg *config.Config, log *zap.Logger, clients *Clients) Services {
	log.Info("wiring services")

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	backend := repository.NewBackendClient(&http.Client{Timeout: cfg.Backend.Timeout}, cfg.Backend.BaseURL, log)
	enrollments := repository.NewEnrollmentRepository(backend, log)
	profiles := repository.NewProfileRepository(backend, log)

	transcription := service.NewTranscriptionService(clients.Transcribers, cfg.LLM.Timeout, metrics, log)
	log.Info("transcription chain configured", zap.Strings("providers", transcription.Providers()))

	var intentModel service.ConversationModel
	if clients.Model != nil {
		intentModel = clients.Model
	}
	classifier := service.NewIntentClassifier(intentModel, log)
	matcher := service.NewEntityMatcher()

	startInFallback := false
	if clients.Model != nil && cfg.LLM.StartupProbe {
		if err := service.ProbeModel(ctx, clients.Model, cfg.LLM.Timeout); err != nil {
			log.Warn("hosted model startup probe failed, sessions start in fallback mode",
				zap.String("provider", clients.Model.Name()), zap.Error(err))
			startInFallback = true
		}
	}

	sessionRepo := repository.NewSessionRepository(clients.Redis, log)
	sessionStore := service.NewAsyncSessionStore(sessionRepo, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     log,
	})

	factory := func() *service.ChatbotService {
		return service.NewChatbotService(service.ChatbotOptions{
			Model:               clients.Model,
			Provider:            clients.Provider,
			HasAPIKey:           clients.HasAPIKey,
			Enrollments:         enrollments,
			Profiles:            profiles,
			Transcriber:         transcription,
			Classifier:          classifier,
			Matcher:             matcher,
			Metrics:             metrics,
			Logger:              log,
			HistoryLimit:        cfg.Chat.HistoryLimit,
			Timeout:             cfg.LLM.Timeout,
			ModelIntentFallback: cfg.LLM.IntentModelFallback,
			StartInFallback:     startInFallback,
		})
	}

	sessions := service.NewSessionService(service.SessionServiceParams{
		Factory: factory,
		Store:   sessionStore,
		IdleTTL: cfg.Chat.SessionIdleTTL,
		Metrics: metrics,
		Logger:  log,
	})

	reports := service.NewReportService(enrollments, profiles, export.NewCSVExporter(true), export.NewPDFExporter(), metrics, log)

	return Services{
		Auth:          service.NewAuthService(log, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret}),
		Metrics:       metrics,
		Transcription: transcription,
		Sessions:      sessions,
		Reports:       reports,
		sessionRepo:   sessionRepo,
		sessionStore:  sessionStore,
	}
}
