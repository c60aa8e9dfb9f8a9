package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubot-api/internal/models"
)

type sessionFixture struct {
	svc     *SessionService
	store   *fakeSessionStore
	source  *fakeEnrollmentSource
	metrics *MetricsService
	created int
	now     time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store:   newFakeSessionStore(),
		source:  &fakeEnrollmentSource{list: sampleEnrollments()},
		metrics: NewMetricsService(),
		now:     fixedNow,
	}
	f.svc = NewSessionService(SessionServiceParams{
		Factory: func() *ChatbotService {
			f.created++
			return newTestChatbot(&fakeHostedModel{reply: "hola"}, f.source)
		},
		Store:   f.store,
		IdleTTL: 30 * time.Minute,
		Metrics: f.metrics,
		Now:     func() time.Time { return f.now },
	})
	return f
}

func TestSessionServiceKeepsOneConversationPerSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.svc.Chat(ctx, "a", say("mi peor nota"), student())
	reply := f.svc.Chat(ctx, "a", say("sí"), student())
	assert.Equal(t, models.IntentRoadmap, reply.Intent)

	reply = f.svc.Chat(ctx, "b", say("sí"), student())
	assert.NotEqual(t, models.IntentRoadmap, reply.Intent, "pending offers do not leak between sessions")

	assert.Equal(t, 2, f.created)
	assert.Equal(t, 2, f.svc.ActiveSessions())
	assert.Equal(t, 3, f.store.saves)
	assert.Equal(t, 30*time.Minute, f.store.ttl)
}

func TestSessionServiceEvictsIdleSessions(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.svc.Chat(ctx, "a", say("hola"), student())
	f.now = f.now.Add(31 * time.Minute)
	f.svc.Status(ctx, "b")

	assert.Equal(t, 1, f.svc.ActiveSessions())

	f.svc.Status(ctx, "a")
	assert.Equal(t, 3, f.created, "evicted session is rebuilt on next access")
}

func TestSessionServiceEvictionUpdatesActiveGauge(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.svc.Chat(ctx, "a", say("hola"), student())
	f.svc.Chat(ctx, "b", say("hola"), student())
	assert.Equal(t, 2, f.metrics.Snapshot().ActiveSessions)

	f.now = f.now.Add(20 * time.Minute)
	f.svc.Status(ctx, "b")
	f.now = f.now.Add(15 * time.Minute)
	f.svc.Status(ctx, "b")

	assert.Equal(t, 1, f.svc.ActiveSessions())
	assert.Equal(t, 1, f.metrics.Snapshot().ActiveSessions)
}

type blockingSessionStore struct {
	*fakeSessionStore
	loading chan struct{}
	release chan struct{}
}

func (b *blockingSessionStore) Load(ctx context.Context, id string) (models.SessionState, bool, error) {
	b.loading <- struct{}{}
	<-b.release
	return b.fakeSessionStore.Load(ctx, id)
}

func TestSessionServiceTurnsWaitForRestore(t *testing.T) {
	store := &blockingSessionStore{
		fakeSessionStore: newFakeSessionStore(),
		loading:          make(chan struct{}, 1),
		release:          make(chan struct{}),
	}
	ctx := context.Background()
	require.NoError(t, store.fakeSessionStore.Save(ctx, models.SessionState{
		SessionID: "a",
		Context:   models.ConversationContext{PendingAction: models.PendingRoadmapOffer},
	}, time.Minute))

	source := &fakeEnrollmentSource{list: sampleEnrollments()}
	svc := NewSessionService(SessionServiceParams{
		Factory: func() *ChatbotService { return newTestChatbot(&fakeHostedModel{reply: "hola"}, source) },
		Store:   store,
		Now:     func() time.Time { return fixedNow },
	})

	statusDone := make(chan struct{})
	go func() {
		defer close(statusDone)
		svc.Status(ctx, "a")
	}()
	<-store.loading

	replies := make(chan models.ChatReply, 1)
	go func() { replies <- svc.Chat(ctx, "a", say("dale"), student()) }()

	select {
	case <-replies:
		t.Fatal("turn ran before the persisted state was loaded")
	case <-time.After(20 * time.Millisecond):
	}
	close(store.release)
	<-statusDone

	reply := <-replies
	assert.Equal(t, models.IntentRoadmap, reply.Intent)
}

func TestSessionServiceRestoresPersistedState(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, models.SessionState{
		SessionID: "a",
		Context:   models.ConversationContext{PendingAction: models.PendingRoadmapOffer},
		Fallback:  true,
	}, time.Minute))

	status := f.svc.Status(ctx, "a")
	assert.Equal(t, modeFallback, status.Mode)

	reply := f.svc.Chat(ctx, "a", say("dale"), student())
	assert.Equal(t, models.IntentRoadmap, reply.Intent)
}

func TestSessionServiceResetPersistsClearedContext(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.svc.Chat(ctx, "a", say("mi peor nota"), student())
	require.Equal(t, models.PendingRoadmapOffer, f.store.states["a"].Context.PendingAction)

	f.svc.Reset(ctx, "a")
	assert.Equal(t, models.ConversationContext{}, f.store.states["a"].Context)
}

func TestSessionServiceWithoutStore(t *testing.T) {
	svc := NewSessionService(SessionServiceParams{
		Factory: func() *ChatbotService { return newTestChatbot(nil, nil) },
	})
	reply := svc.Chat(context.Background(), "x", say("hola"), models.UserContext{})
	assert.Equal(t, models.PathFallback, reply.Path)
}

func TestSessionServiceConcurrentTurns(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.svc.Chat(ctx, fmt.Sprintf("s%d", i%2), say("¿Cuál es mi promedio?"), student())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, f.svc.ActiveSessions())
	assert.Equal(t, 8, f.source.calls)
}
