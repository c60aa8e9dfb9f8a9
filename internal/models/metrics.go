package models

import "time"

// MetricsSnapshot aggregates counters for the status endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ChatTurns                uint64    `json:"chat_turns"`
	FallbackTurns            uint64    `json:"fallback_turns"`
	HostedModelFailures      uint64    `json:"hosted_model_failures"`
	GatewayFetches           uint64    `json:"gateway_fetches"`
	AverageGatewayLatencyMs  float64   `json:"average_gateway_latency_ms"`
	ActiveSessions           int       `json:"active_sessions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
