package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
)

const sessionKeyPrefix = "edubot:session:"

// SessionRepository stores chat session snapshots in Redis.
type SessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSessionRepository constructs a session repository. A nil client makes every call a no-op.
func NewSessionRepository(client *redis.Client, logger *zap.Logger) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{client: client, logger: logger}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Load retrieves a snapshot. Missing keys report false without error.
func (r *SessionRepository) Load(ctx context.Context, sessionID string) (models.SessionState, bool, error) {
	var state models.SessionState
	if r.client == nil {
		return state, false, nil
	}

	raw, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return state, false, nil
		}
		return state, false, fmt.Errorf("redis get session %s: %w", sessionID, err)
	}

	if err := json.Unmarshal(raw, &state); err != nil {
		return state, false, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}

	return state, true, nil
}

// Save marshals the snapshot and stores it with the given TTL.
func (r *SessionRepository) Save(ctx context.Context, state models.SessionState, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", state.SessionID, err)
	}

	if err := r.client.Set(ctx, sessionKey(state.SessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", state.SessionID, err)
	}

	return nil
}

// Delete removes a snapshot.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", sessionID, err)
	}
	return nil
}

// Ping reports whether Redis is reachable. A disabled store is always ready.
func (r *SessionRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *SessionRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
