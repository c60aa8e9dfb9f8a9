package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	seen  []string
	fails map[string]int
}

func (r *recorder) handle(_ context.Context, job Job[string]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails[job.Payload] > 0 {
		r.fails[job.Payload]--
		return errors.New("transient")
	}
	r.seen = append(r.seen, job.Payload)
	return nil
}

func (r *recorder) processed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestQueueDrainsOnStop(t *testing.T) {
	rec := &recorder{}
	q := NewQueue[string]("test", rec.handle, QueueConfig{Workers: 2})
	q.Start(context.Background())

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job[string]{ID: p, Payload: p}))
	}
	q.Stop()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, rec.processed())
	assert.Error(t, q.Enqueue(Job[string]{Payload: "late"}))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	rec := &recorder{fails: map[string]int{"flaky": 2}}
	q := NewQueue[string]("test", rec.handle, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[string]{ID: "1", Payload: "flaky"}))

	assert.Eventually(t, func() bool { return len(rec.processed()) == 1 }, time.Second, 5*time.Millisecond)
	q.Stop()
}

func TestQueueRejectsBeforeStartAndWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue[string]("test", func(context.Context, Job[string]) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	assert.Error(t, q.Enqueue(Job[string]{Payload: "x"}))

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[string]{Payload: "1"}))
	var full bool
	for i := 0; i < 3 && !full; i++ {
		full = q.Enqueue(Job[string]{Payload: "n"}) != nil
	}
	assert.True(t, full)

	close(block)
	q.Stop()
}
