package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubot-api/internal/models"
	"github.com/noah-isme/edubot-api/pkg/jobs"
)

func TestAsyncSessionStoreFlushesOnStop(t *testing.T) {
	backing := newFakeSessionStore()
	store := NewAsyncSessionStore(backing, jobs.QueueConfig{Workers: 2})
	store.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(context.Background(), models.SessionState{SessionID: id}, time.Minute))
	}
	store.Stop()

	assert.Equal(t, 3, backing.saves)
	_, found, err := store.Load(context.Background(), "b")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, store.Delete(context.Background(), "b"))
	_, found, _ = store.Load(context.Background(), "b")
	assert.False(t, found)
}

func TestAsyncSessionStoreSavesInlineWhenStopped(t *testing.T) {
	backing := newFakeSessionStore()
	store := NewAsyncSessionStore(backing, jobs.QueueConfig{})

	require.NoError(t, store.Save(context.Background(), models.SessionState{SessionID: "x"}, time.Minute))
	assert.Equal(t, 1, backing.saves)
	assert.Equal(t, time.Minute, backing.ttl)
}

func TestAsyncSessionStoreDropsStaleSnapshots(t *testing.T) {
	backing := newFakeSessionStore()
	store := NewAsyncSessionStore(backing, jobs.QueueConfig{})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, models.SessionState{SessionID: "x", Version: 5, Fallback: true}, time.Minute))
	require.NoError(t, store.Save(ctx, models.SessionState{SessionID: "x", Version: 3}, time.Minute))
	assert.Equal(t, uint64(5), backing.states["x"].Version)
	assert.True(t, backing.states["x"].Fallback)

	require.NoError(t, store.Save(ctx, models.SessionState{SessionID: "x", Version: 6}, time.Minute))
	assert.Equal(t, uint64(6), backing.states["x"].Version)
}

func TestAsyncSessionStoreKeepsNewestUnderConcurrentWriters(t *testing.T) {
	backing := newFakeSessionStore()
	store := NewAsyncSessionStore(backing, jobs.QueueConfig{Workers: 4})
	store.Start(context.Background())

	var wg sync.WaitGroup
	for v := uint64(1); v <= 20; v++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			_ = store.Save(context.Background(), models.SessionState{SessionID: "x", Version: v}, time.Minute)
		}(v)
	}
	wg.Wait()
	store.Stop()

	assert.Equal(t, uint64(20), backing.states["x"].Version)
}
