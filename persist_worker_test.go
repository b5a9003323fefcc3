package topicscope

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coregx/topicscope/model"
	"github.com/coregx/topicscope/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessionRepo struct {
	mu       sync.Mutex
	cfg      *model.TopicsConfig
	saves    int
	failures int // SaveAll fails this many times first
}

func (r *memorySessionRepo) LoadAll(context.Context) (model.TopicsConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return model.TopicsConfig{}, ErrNoData
	}
	return *r.cfg, nil
}

func (r *memorySessionRepo) SaveAll(_ context.Context, cfg model.TopicsConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.failures > 0 {
		r.failures--
		return errors.New("database is locked")
	}
	r.cfg = &cfg
	return nil
}

func (r *memorySessionRepo) ClearAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = nil
	return nil
}

func (r *memorySessionRepo) stored() (model.TopicsConfig, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return model.TopicsConfig{}, r.saves, false
	}
	return *r.cfg, r.saves, true
}

type memoryFormRepo struct {
	mu    sync.Mutex
	state *model.FormState
}

func (r *memoryFormRepo) Load(context.Context) (model.FormState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return model.FormState{}, ErrNoData
	}
	return *r.state, nil
}

func (r *memoryFormRepo) Save(_ context.Context, state model.FormState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = &state
	return nil
}

func (r *memoryFormRepo) stored() (model.FormState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return model.FormState{}, false
	}
	return *r.state, true
}

func fastRetry() retry.Strategy {
	return retry.Strategy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2}
}

func newTestWorker(t *testing.T, sessions *memorySessionRepo, forms *memoryFormRepo) *PersistWorker {
	t.Helper()
	w, err := NewPersistWorker(
		WithPersistRepositories(sessions, forms),
		WithPersistLogger(&NoopLogger{}),
		WithPersistRetryStrategy(fastRetry()),
	)
	require.NoError(t, err)
	return w
}

func TestNewPersistWorker_Validation(t *testing.T) {
	_, err := NewPersistWorker(WithPersistLogger(&NoopLogger{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SessionRepository is required")

	_, err = NewPersistWorker(WithPersistRepositories(&memorySessionRepo{}, &memoryFormRepo{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Logger is required")

	_, err = NewPersistWorker(WithPersistRepositories(nil, &memoryFormRepo{}))
	require.Error(t, err)
}

func TestPersistWorker_Load_Defaults(t *testing.T) {
	w := newTestWorker(t, &memorySessionRepo{}, &memoryFormRepo{})

	topics, form, err := w.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, topics.Sessions)
	assert.Equal(t, model.DefaultFormState(), form)
}

func TestPersistWorker_Load_Normalizes(t *testing.T) {
	forms := &memoryFormRepo{state: &model.FormState{
		IdleSeconds: -4,
		HistorySize: 2,
		History:     model.History{"a", "b", "c"},
	}}
	w := newTestWorker(t, &memorySessionRepo{}, forms)

	_, form, err := w.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, form.IdleSeconds)
	assert.Equal(t, model.History{"a", "b"}, form.History)
}

func TestPersistWorker_Coalesces(t *testing.T) {
	sessions := &memorySessionRepo{}
	w := newTestWorker(t, sessions, &memoryFormRepo{})

	for i := 1; i <= 5; i++ {
		w.SaveTopics(model.TopicsConfig{ActiveTopicID: string(rune('0' + i))})
	}
	require.NoError(t, w.Flush(context.Background()))

	cfg, saves, ok := sessions.stored()
	require.True(t, ok)
	assert.Equal(t, "5", cfg.ActiveTopicID, "only the newest snapshot is written")
	assert.Equal(t, 1, saves)
}

func TestPersistWorker_Run_RetriesAndFlushesOnStop(t *testing.T) {
	sessions := &memorySessionRepo{failures: 2}
	forms := &memoryFormRepo{}
	w := newTestWorker(t, sessions, forms)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.SaveTopics(model.TopicsConfig{ActiveTopicID: "x"})
	assert.Eventually(t, func() bool {
		cfg, _, ok := sessions.stored()
		return ok && cfg.ActiveTopicID == "x"
	}, time.Second, 5*time.Millisecond)

	_, saves, _ := sessions.stored()
	assert.Equal(t, 3, saves)

	cancel()
	<-done

	w.SaveFormState(model.FormState{URL: "ws://late"})
	require.NoError(t, w.Flush(context.Background()))
	form, ok := forms.stored()
	require.True(t, ok)
	assert.Equal(t, "ws://late", form.URL)
}

func slowRetry() retry.Strategy {
	return retry.Strategy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: 50 * time.Millisecond, ExponentialBase: 1}
}

func startWorker(t *testing.T, w *PersistWorker) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel, done
}

func TestPersistWorker_FlushDuringRetryKeepsNewest(t *testing.T) {
	sessions := &memorySessionRepo{failures: 1}
	w, err := NewPersistWorker(
		WithPersistRepositories(sessions, &memoryFormRepo{}),
		WithPersistLogger(&NoopLogger{}),
		WithPersistRetryStrategy(slowRetry()),
	)
	require.NoError(t, err)
	startWorker(t, w)

	w.SaveTopics(model.TopicsConfig{ActiveTopicID: "old"})
	require.Eventually(t, func() bool {
		_, saves, _ := sessions.stored()
		return saves == 1
	}, time.Second, time.Millisecond, "first write fails and backs off")

	w.SaveTopics(model.TopicsConfig{ActiveTopicID: "new"})
	require.NoError(t, w.Flush(context.Background()))

	cfg, _, ok := sessions.stored()
	require.True(t, ok)
	assert.Equal(t, "new", cfg.ActiveTopicID)

	time.Sleep(150 * time.Millisecond)
	cfg, saves, _ := sessions.stored()
	assert.Equal(t, "new", cfg.ActiveTopicID, "the failed snapshot is never written afterwards")
	assert.Equal(t, 2, saves)
}

func TestPersistWorker_SkipsSnapshotOlderThanWritten(t *testing.T) {
	sessions := &memorySessionRepo{}
	w := newTestWorker(t, sessions, &memoryFormRepo{})
	ctx := context.Background()

	w.SaveTopics(model.TopicsConfig{ActiveTopicID: "a"})
	taken := <-w.topics
	w.SaveTopics(model.TopicsConfig{ActiveTopicID: "b"})
	require.NoError(t, w.Flush(ctx))

	w.writeTopics(ctx, taken)

	cfg, saves, _ := sessions.stored()
	assert.Equal(t, "b", cfg.ActiveTopicID)
	assert.Equal(t, 1, saves)
}

func TestPersistWorker_StopDuringRetryFlushesSnapshot(t *testing.T) {
	sessions := &memorySessionRepo{failures: 1}
	w, err := NewPersistWorker(
		WithPersistRepositories(sessions, &memoryFormRepo{}),
		WithPersistLogger(&NoopLogger{}),
		WithPersistRetryStrategy(retry.Strategy{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Minute, ExponentialBase: 1}),
	)
	require.NoError(t, err)
	cancel, done := startWorker(t, w)

	w.SaveTopics(model.TopicsConfig{ActiveTopicID: "x"})
	require.Eventually(t, func() bool {
		_, saves, _ := sessions.stored()
		return saves == 1
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	cfg, saves, ok := sessions.stored()
	require.True(t, ok)
	assert.Equal(t, "x", cfg.ActiveTopicID)
	assert.Equal(t, 2, saves)
}

func TestPersistWorker_ClearAll(t *testing.T) {
	sessions := &memorySessionRepo{cfg: &model.TopicsConfig{ActiveTopicID: "a"}}
	w := newTestWorker(t, sessions, &memoryFormRepo{})

	require.NoError(t, w.ClearAll(context.Background()))
	_, _, ok := sessions.stored()
	assert.False(t, ok)
}

func TestClient_PersistsAndRestores(t *testing.T) {
	sessions := &memorySessionRepo{}
	forms := &memoryFormRepo{}
	w := newTestWorker(t, sessions, forms)
	ctx := context.Background()

	f := newClientFixture(t, WithPersistence(w))
	a, err := f.client.CreateTopic("a/#")
	require.NoError(t, err)
	f.client.CreateTopic("b")
	f.client.SetIdleTimeout(30)
	f.client.SetURL("ws://broker.local/mqtt")
	require.NoError(t, w.Flush(ctx))

	restored := newClientFixture(t, WithPersistence(w))
	require.NoError(t, restored.client.Load(ctx))

	got := restored.client.Sessions()
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, a.Color, got[0].Color)
	assert.Equal(t, a.ID, restored.client.State().ActiveTopicID)
	assert.Equal(t, 30, restored.client.FormState().IdleSeconds)
	assert.Equal(t, "ws://broker.local/mqtt", restored.client.FormState().URL)
}
