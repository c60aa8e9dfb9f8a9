package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
	"github.com/noah-isme/edubot-api/pkg/jobs"
)

type sessionWrite struct {
	state models.SessionState
	ttl   time.Duration
}

const writerStripes = 32

// AsyncSessionStore moves snapshot writes off the turn path onto a worker queue.
// Loads and deletes go straight to the wrapped store. Writes for one session are
// serialized and a snapshot older than the stored one is dropped.
type AsyncSessionStore struct {
	store   SessionStore
	queue   *jobs.Queue[sessionWrite]
	logger  *zap.Logger
	stripes [writerStripes]sync.Mutex
}

// NewAsyncSessionStore wraps store. Call Start before use and Stop to flush pending writes.
func NewAsyncSessionStore(store SessionStore, cfg jobs.QueueConfig) *AsyncSessionStore {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &AsyncSessionStore{store: store, logger: cfg.Logger}
	s.queue = jobs.NewQueue[sessionWrite]("session-writer", func(ctx context.Context, job jobs.Job[sessionWrite]) error {
		return s.write(ctx, job.Payload)
	}, cfg)
	return s
}

func (s *AsyncSessionStore) stripe(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.stripes[h.Sum32()%writerStripes]
}

func (s *AsyncSessionStore) write(ctx context.Context, w sessionWrite) error {
	lock := s.stripe(w.state.SessionID)
	lock.Lock()
	defer lock.Unlock()

	current, found, err := s.store.Load(ctx, w.state.SessionID)
	if err != nil {
		s.logger.Warn("failed to read stored session before write", zap.String("session_id", w.state.SessionID), zap.Error(err))
	}
	if err == nil && found && current.Version > w.state.Version {
		s.logger.Debug("dropping stale session snapshot",
			zap.String("session_id", w.state.SessionID),
			zap.Uint64("version", w.state.Version),
			zap.Uint64("stored_version", current.Version),
		)
		return nil
	}
	return s.store.Save(ctx, w.state, w.ttl)
}

// Start launches the writers.
func (s *AsyncSessionStore) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop flushes queued writes.
func (s *AsyncSessionStore) Stop() { s.queue.Stop() }

// Load implements SessionStore.
func (s *AsyncSessionStore) Load(ctx context.Context, sessionID string) (models.SessionState, bool, error) {
	return s.store.Load(ctx, sessionID)
}

// Save implements SessionStore. When the queue rejects the write it is done inline.
func (s *AsyncSessionStore) Save(ctx context.Context, state models.SessionState, ttl time.Duration) error {
	err := s.queue.Enqueue(jobs.Job[sessionWrite]{ID: state.SessionID, Payload: sessionWrite{state: state, ttl: ttl}})
	if err == nil {
		return nil
	}
	s.logger.Debug("session write queue unavailable, saving inline", zap.String("session_id", state.SessionID), zap.Error(err))
	return s.write(ctx, sessionWrite{state: state, ttl: ttl})
}

// Delete implements SessionStore.
func (s *AsyncSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}
