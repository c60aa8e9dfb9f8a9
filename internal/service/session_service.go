package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
)

// SessionStore persists session state across restarts. Load reports false for unknown sessions.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (models.SessionState, bool, error)
	Save(ctx context.Context, state models.SessionState, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

type sessionEntry struct {
	bot      *ChatbotService
	lastSeen time.Time
	// restored gates every caller until persisted state has been loaded.
	restored sync.Once
}

// SessionService owns one ChatbotService per session and evicts idle ones on access.
type SessionService struct {
	factory func() *ChatbotService
	store   SessionStore
	idleTTL time.Duration
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// SessionServiceParams groups constructor dependencies.
type SessionServiceParams struct {
	Factory func() *ChatbotService
	Store   SessionStore
	IdleTTL time.Duration
	Metrics *MetricsService
	Logger  *zap.Logger
	Now     func() time.Time
}

// NewSessionService builds the registry.
func NewSessionService(params SessionServiceParams) *SessionService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	idle := params.IdleTTL
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &SessionService{
		factory:  params.Factory,
		store:    params.Store,
		idleTTL:  idle,
		metrics:  params.Metrics,
		logger:   logger,
		now:      now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Chat answers one turn in the given session and persists the resulting state.
func (s *SessionService) Chat(ctx context.Context, sessionID string, turn models.ChatTurn, user models.UserContext) models.ChatReply {
	bot := s.session(ctx, sessionID)
	reply := bot.HandleTurn(ctx, turn, user)
	s.persist(ctx, sessionID, bot)
	return reply
}

// Status reports the hosted model availability for a session.
func (s *SessionService) Status(ctx context.Context, sessionID string) models.ServiceStatus {
	return s.session(ctx, sessionID).Status()
}

// Reset clears history and context of a session.
func (s *SessionService) Reset(ctx context.Context, sessionID string) {
	bot := s.session(ctx, sessionID)
	bot.Reset()
	s.persist(ctx, sessionID, bot)
}

// ActiveSessions returns the number of sessions held in memory.
func (s *SessionService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionService) session(ctx context.Context, sessionID string) *ChatbotService {
	s.mu.Lock()
	now := s.now()
	changed := s.evictIdleLocked(now)
	entry, ok := s.sessions[sessionID]
	if ok {
		entry.lastSeen = now
	} else {
		entry = &sessionEntry{bot: s.factory(), lastSeen: now}
		s.sessions[sessionID] = entry
		changed = true
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if changed {
		s.metrics.SetActiveSessions(count)
	}
	entry.restored.Do(func() { s.restore(ctx, sessionID, entry.bot) })
	return entry.bot
}

func (s *SessionService) evictIdleLocked(now time.Time) bool {
	evicted := false
	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.idleTTL {
			delete(s.sessions, id)
			evicted = true
			s.logger.Debug("evicted idle chat session", zap.String("session_id", id))
		}
	}
	return evicted
}

func (s *SessionService) restore(ctx context.Context, sessionID string, bot *ChatbotService) {
	if s.store == nil {
		return
	}
	state, found, err := s.store.Load(ctx, sessionID)
	if err != nil {
		s.logger.Warn("failed to load chat session", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if found {
		bot.Restore(state)
	}
}

func (s *SessionService) persist(ctx context.Context, sessionID string, bot *ChatbotService) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, bot.State(sessionID), s.idleTTL); err != nil {
		s.logger.Warn("failed to save chat session", zap.String("session_id", sessionID), zap.Error(err))
	}
}
