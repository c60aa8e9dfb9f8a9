package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const maxBackendBody = 4 << 20

var tracer = otel.Tracer("github.com/noah-isme/edubot-api/internal/repository")

// BackendClient performs authenticated GETs against the student-information backend.
type BackendClient struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewBackendClient builds a client for baseURL. A nil http client gets a 10s default.
func NewBackendClient(client *http.Client, baseURL string, logger *zap.Logger) *BackendClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackendClient{http: client, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// backendResponse is a completed exchange. Transport failures are returned as errors instead.
type backendResponse struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r backendResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func (c *BackendClient) get(ctx context.Context, path, token string) (backendResponse, error) {
	ctx, span := tracer.Start(ctx, "backend.GET "+path)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return backendResponse{}, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return backendResponse{}, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		span.RecordError(err)
		return backendResponse{}, fmt.Errorf("read %s: %w", path, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return backendResponse{Status: resp.StatusCode, Body: body}, nil
}

// rawString renders a JSON string or number as text; anything else is empty.
func rawString(raw json.RawMessage) string {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeObject decodes raw into dst only when raw is a JSON object.
func decodeObject(raw json.RawMessage, dst interface{}) bool {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
