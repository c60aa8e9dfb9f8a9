package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/pkg/config"
	"github.com/noah-isme/edubot-api/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

// App owns the process-wide dependencies of the API server.
type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	Router   *gin.Engine
	Clients  *Clients
	Services Services

	shutdownTracing tracing.ShutdownFunc
}

// New wires clients, services, handlers and the router.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, log)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	clients, err := wireClients(ctx, cfg, log)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	services := wireServices(ctx, cfg, log, clients)
	handlers := wireHandlers(cfg, log, services)
	router := wireRouter(cfg, log, services, handlers)

	return &App{
		Cfg:             cfg,
		Log:             log,
		Router:          router,
		Clients:         clients,
		Services:        services,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	a.Services.sessionStore.Start(ctx)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return errors.New("app not initialized")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", a.Cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close flushes pending session writes and releases clients.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.Services.sessionStore.Stop()
	if err := a.Services.sessionRepo.Close(); err != nil {
		a.Log.Warn("close session store", zap.Error(err))
	}
	a.Clients.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		a.Log.Warn("flush traces", zap.Error(err))
	}
	_ = a.Log.Sync()
}
