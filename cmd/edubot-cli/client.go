package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/edubot-api/internal/dto"
	"github.com/noah-isme/edubot-api/internal/models"
)

const sessionHeader = "X-Session-ID"

// apiClient talks to a running edubot-api server.
type apiClient struct {
	baseURL   string
	token     string
	sessionID string
	http      *http.Client
}

func newAPIClient(baseURL, token, sessionID string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		sessionID: sessionID,
		http:      &http.Client{Timeout: timeout},
	}
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if id := resp.Header.Get(sessionHeader); id != "" {
		c.sessionID = id
	}
	return resp, nil
}

func decode[T any](resp *http.Response) (T, error) {
	defer resp.Body.Close()
	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env.Data, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if env.Error != nil {
		return env.Data, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return env.Data, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return env.Data, nil
}

func (c *apiClient) Chat(ctx context.Context, message string) (dto.ChatResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/chat", dto.ChatRequest{Message: message})
	if err != nil {
		return dto.ChatResponse{}, err
	}
	return decode[dto.ChatResponse](resp)
}

func (c *apiClient) Status(ctx context.Context) (models.ServiceStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/chat/status", nil)
	if err != nil {
		return models.ServiceStatus{}, err
	}
	return decode[models.ServiceStatus](resp)
}

func (c *apiClient) Reset(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/chat/reset", nil)
	if err != nil {
		return err
	}
	_, err = decode[dto.ResetResponse](resp)
	return err
}

// Report downloads the academic report and returns its bytes.
func (c *apiClient) Report(ctx context.Context, format string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/academic/report?format="+format, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, err := decode[json.RawMessage](resp)
		if err == nil {
			err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
