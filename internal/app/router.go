package app

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/handler"
	internalmiddleware "github.com/noah-isme/edubot-api/internal/middleware"
	"github.com/noah-isme/edubot-api/pkg/config"
	"github.com/noah-isme/edubot-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edubot-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edubot-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers.
type Handlers struct {
	Chat    *handler.ChatHandler
	Report  *handler.ReportHandler
	Metrics *handler.MetricsHandler
}

func wireHandlers(cfg *config.Config, log *zap.Logger, services Services) Handlers {
	log.Info("wiring handlers")
	return Handlers{
		Chat:   handler.NewChatHandler(services.Sessions, validator.New(), cfg.Chat.MaxUploadBytes, log),
		Report: handler.NewReportHandler(services.Reports),
		Metrics: handler.NewMetricsHandler(services.Metrics, map[string]handler.ReadinessCheck{
			"session_store": services.sessionRepo.Ping,
		}),
	}
}

func wireRouter(cfg *config.Config, log *zap.Logger, services Services, handlers Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(services.Metrics))

	r.GET("/health", handlers.Metrics.Health)
	r.GET("/ready", handlers.Metrics.Ready)
	if services.Metrics != nil {
		r.GET("/metrics", handlers.Metrics.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	chat := api.Group("/chat", internalmiddleware.OptionalJWT(services.Auth))
	chat.POST("", handlers.Chat.Chat)
	chat.POST("/media", handlers.Chat.Media)
	chat.GET("/status", handlers.Chat.Status)
	chat.POST("/reset", handlers.Chat.Reset)

	academic := api.Group("/academic", internalmiddleware.JWT(services.Auth))
	academic.GET("/summary", handlers.Report.Summary)
	academic.GET("/report", handlers.Report.Export)

	if services.Metrics != nil {
		api.GET("/metrics/summary", handlers.Metrics.Summary)
	}

	return r
}
