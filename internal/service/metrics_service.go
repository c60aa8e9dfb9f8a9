package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/edubot-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	chatTurns           *prometheus.CounterVec
	hostedModelFailures *prometheus.CounterVec
	gatewayLatency      *prometheus.HistogramVec
	transcriptions      *prometheus.CounterVec
	activeSessions      prometheus.Gauge

	requestCount         uint64
	requestDurationTotal uint64
	chatTurnCount        uint64
	fallbackTurnCount    uint64
	modelFailureCount    uint64
	gatewayCount         uint64
	gatewayDurationTotal uint64
	sessionCount         int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	chatTurns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edubot_chat_turns_total",
		Help: "Chat turns answered, by reply path and intent",
	}, []string{"path", "intent"})

	hostedModelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edubot_hosted_model_failures_total",
		Help: "Failed hosted model calls",
	}, []string{"provider", "operation"})

	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edubot_gateway_fetch_seconds",
		Help:    "Latency of student-information backend fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource", "outcome"})

	transcriptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edubot_transcriptions_total",
		Help: "Audio transcription attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edubot_active_sessions",
		Help: "Chat sessions currently held in memory",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, chatTurns, hostedModelFailures, gatewayLatency, transcriptions, activeSessions, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		chatTurns:           chatTurns,
		hostedModelFailures: hostedModelFailures,
		gatewayLatency:      gatewayLatency,
		transcriptions:      transcriptions,
		activeSessions:      activeSessions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordChatTurn counts one answered turn.
func (m *MetricsService) RecordChatTurn(path models.ReplyPath, intent models.Intent) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(string(path), string(intent)).Inc()
	atomic.AddUint64(&m.chatTurnCount, 1)
	if path == models.PathFallback {
		atomic.AddUint64(&m.fallbackTurnCount, 1)
	}
}

// RecordHostedModelFailure counts a failed chat, vision or classification call.
func (m *MetricsService) RecordHostedModelFailure(provider, operation string) {
	if m == nil {
		return
	}
	m.hostedModelFailures.WithLabelValues(provider, operation).Inc()
	atomic.AddUint64(&m.modelFailureCount, 1)
}

// ObserveGatewayFetch records a backend fetch.
func (m *MetricsService) ObserveGatewayFetch(resource string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayLatency.WithLabelValues(resource, outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.gatewayCount, 1)
	atomic.AddUint64(&m.gatewayDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordTranscription counts a transcription attempt.
func (m *MetricsService) RecordTranscription(provider, outcome string) {
	if m == nil {
		return
	}
	m.transcriptions.WithLabelValues(provider, outcome).Inc()
}

// SetActiveSessions publishes the in-memory session count.
func (m *MetricsService) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
	atomic.StoreInt64(&m.sessionCount, int64(n))
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	gatewayCount := atomic.LoadUint64(&m.gatewayCount)
	gatewayDuration := atomic.LoadUint64(&m.gatewayDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgGatewayMs float64
	if gatewayCount > 0 {
		avgGatewayMs = float64(gatewayDuration) / float64(gatewayCount) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ChatTurns:                atomic.LoadUint64(&m.chatTurnCount),
		FallbackTurns:            atomic.LoadUint64(&m.fallbackTurnCount),
		HostedModelFailures:      atomic.LoadUint64(&m.modelFailureCount),
		GatewayFetches:           gatewayCount,
		AverageGatewayLatencyMs:  avgGatewayMs,
		ActiveSessions:           int(atomic.LoadInt64(&m.sessionCount)),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
