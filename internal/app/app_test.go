package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubot-api/internal/dto"
	"github.com/noah-isme/edubot-api/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:       config.EnvDevelopment,
		Port:      0,
		APIPrefix: "/api/v1",
		Backend:   config.BackendConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		LLM: config.LLMConfig{
			Provider: config.ProviderNone,
			Timeout:  time.Second,
		},
		Transcription: config.TranscriptionConfig{Primary: config.ProviderNone, Secondary: config.ProviderNone},
		Chat:          config.ChatConfig{HistoryLimit: 11, SessionIdleTTL: time.Minute, MaxUploadBytes: 1 << 20},
		Metrics:       config.MetricsConfig{Enabled: true},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func serve(a *App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func TestNewWithoutProviderRunsInFallback(t *testing.T) {
	a := newTestApp(t, testConfig())

	assert.Nil(t, a.Clients.Model)
	assert.Empty(t, a.Clients.Transcribers)
	assert.Nil(t, a.Clients.Redis)
	assert.NotNil(t, a.Services.Metrics)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "watson"

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestRouterOpsEndpoints(t *testing.T) {
	a := newTestApp(t, testConfig())

	w := serve(a, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(a, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(a, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/summary", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterAnonymousChatGetsSessionHeader(t *testing.T) {
	a := newTestApp(t, testConfig())

	body, err := json.Marshal(dto.ChatRequest{Message: "hola"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := serve(a, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Session-ID"))

	var env struct {
		Data dto.ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.NotEmpty(t, env.Data.Reply)
}

func TestRouterAcademicRoutesRequireToken(t *testing.T) {
	a := newTestApp(t, testConfig())

	w := serve(a, httptest.NewRequest(http.MethodGet, "/api/v1/academic/summary", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(a, httptest.NewRequest(http.MethodGet, "/api/v1/academic/report?format=csv", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterSkipsMetricsWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	a := newTestApp(t, cfg)

	w := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	a := newTestApp(t, testConfig())
	a.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
