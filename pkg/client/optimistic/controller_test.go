package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/classtrack/domain"
)

const debounce = 20 * time.Millisecond

type call struct {
	key       domain.StatusKey
	completed bool
}

// fakeWriter stores flags in memory. Completing a subtask also completes the task, like a server
// whose only subtask was closed.
type fakeWriter struct {
	mu     sync.Mutex
	calls  []call
	err    error
	gate   map[domain.StatusKey]chan struct{}
	rollUp bool
}

func (w *fakeWriter) SetStatus(_ context.Context, key domain.StatusKey, completed bool) ([]domain.CompletionRecord, error) {
	w.mu.Lock()
	gate := w.gate[key]
	w.mu.Unlock()
	if gate != nil {
		<-gate
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, call{key: key, completed: completed})
	if w.err != nil {
		return nil, w.err
	}
	records := []domain.CompletionRecord{{TaskID: key.TaskID, SubtaskID: key.SubtaskID, IsCompleted: completed}}
	if w.rollUp && !key.IsTaskLevel() && completed {
		records = append(records, domain.CompletionRecord{TaskID: key.TaskID, IsCompleted: true})
	}
	return records, nil
}

func (w *fakeWriter) Calls() []call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]call(nil), w.calls...)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestToggleShowsIntentImmediately(t *testing.T) {
	w := &fakeWriter{}
	c := New(w, Options{Debounce: time.Hour})
	defer c.Close()
	key := domain.SubtaskKey("t1", "a")

	c.Toggle(key, true)

	assert.True(t, c.Effective(key))
	assert.Equal(t, PendingLocal, c.State(key))
	assert.Empty(t, w.Calls())
}

func TestDebounceLastIntentWins(t *testing.T) {
	w := &fakeWriter{}
	c := New(w, Options{Debounce: debounce})
	defer c.Close()
	key := domain.SubtaskKey("t1", "a")

	c.Toggle(key, true)
	c.Toggle(key, false)
	c.Toggle(key, true)

	eventually(t, func() bool { return c.State(key) == Synced })
	assert.Equal(t, []call{{key: key, completed: true}}, w.Calls())
	assert.True(t, c.Effective(key))
}

func TestIntentDuringInflightWriteIsSentAfterIt(t *testing.T) {
	key := domain.SubtaskKey("t1", "a")
	gate := make(chan struct{})
	w := &fakeWriter{gate: map[domain.StatusKey]chan struct{}{key: gate}}
	c := New(w, Options{Debounce: debounce})
	defer c.Close()

	c.Toggle(key, true)
	time.Sleep(3 * debounce)
	c.Toggle(key, false)
	time.Sleep(3 * debounce)

	assert.False(t, c.Effective(key))
	assert.Equal(t, PendingLocal, c.State(key))

	w.mu.Lock()
	delete(w.gate, key)
	w.mu.Unlock()
	close(gate)

	eventually(t, func() bool { return c.State(key) == Synced && len(w.Calls()) == 2 })
	assert.Equal(t, []call{{key: key, completed: true}, {key: key, completed: false}}, w.Calls())
	assert.False(t, c.Effective(key))
}

func TestIntentDuringInflightWriteMatchingResultSkipsWrite(t *testing.T) {
	key := domain.SubtaskKey("t1", "a")
	gate := make(chan struct{})
	w := &fakeWriter{gate: map[domain.StatusKey]chan struct{}{key: gate}}
	c := New(w, Options{Debounce: debounce})
	defer c.Close()

	c.Toggle(key, true)
	time.Sleep(3 * debounce)
	c.Toggle(key, false)
	c.Toggle(key, true)
	time.Sleep(3 * debounce)
	close(gate)

	eventually(t, func() bool { return c.State(key) == Synced })
	assert.Equal(t, []call{{key: key, completed: true}}, w.Calls())
	assert.True(t, c.Effective(key))
}

func TestRedundantToggleSkipsWrite(t *testing.T) {
	w := &fakeWriter{}
	c := New(w, Options{Debounce: debounce})
	defer c.Close()
	key := domain.TaskKey("t1")
	c.Sync("t1", []domain.CompletionRecord{{TaskID: "t1", IsCompleted: true}})

	c.Toggle(key, false)
	c.Toggle(key, true)

	eventually(t, func() bool { return c.State(key) == Synced })
	time.Sleep(2 * debounce)
	assert.Empty(t, w.Calls())
	assert.True(t, c.Effective(key))
}

func TestSuccessAdoptsServerState(t *testing.T) {
	w := &fakeWriter{rollUp: true}
	c := New(w, Options{Debounce: debounce})
	defer c.Close()
	sub := domain.SubtaskKey("t1", "a")

	c.Toggle(sub, true)

	eventually(t, func() bool { return c.State(sub) == Synced && c.Effective(domain.TaskKey("t1")) })
	assert.True(t, c.Effective(sub))
}

func TestFailureRollsBackAndReports(t *testing.T) {
	w := &fakeWriter{err: errors.New("connection reset")}
	var (
		mu     sync.Mutex
		states []State
		errs   []error
	)
	c := New(w, Options{
		Debounce: debounce,
		OnChange: func(v View) {
			mu.Lock()
			states = append(states, v.State)
			mu.Unlock()
		},
		OnError: func(_ domain.StatusKey, err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})
	defer c.Close()
	key := domain.SubtaskKey("t1", "a")

	c.Toggle(key, true)

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1 && len(states) == 3
	})
	assert.False(t, c.Effective(key))
	assert.Equal(t, Synced, c.State(key))
	assert.Len(t, w.Calls(), 1, "failed writes are not retried")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{PendingLocal, RollingBack, Synced}, states)
	assert.True(t, domain.IsDomainError(errs[0], domain.ErrCodeTransientNetwork))
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	w := &fakeWriter{err: domain.ErrTransientNetwork}
	c := New(w, Options{Debounce: debounce})
	defer c.Close()
	key := domain.TaskKey("t1")
	c.Sync("t1", []domain.CompletionRecord{{TaskID: "t1", IsCompleted: true}})

	c.Toggle(key, false)
	assert.False(t, c.Effective(key))

	eventually(t, func() bool { return len(w.Calls()) == 1 && c.State(key) == Synced })
	assert.True(t, c.Effective(key))
}

func TestKeysAreIndependent(t *testing.T) {
	slow := domain.SubtaskKey("t1", "a")
	fast := domain.SubtaskKey("t2", "b")
	gate := make(chan struct{})
	w := &fakeWriter{gate: map[domain.StatusKey]chan struct{}{slow: gate}}
	c := New(w, Options{Debounce: debounce})

	c.Toggle(slow, true)
	c.Toggle(fast, true)

	eventually(t, func() bool { return c.State(fast) == Synced })
	assert.Equal(t, PendingLocal, c.State(slow))
	assert.True(t, c.Effective(slow))

	close(gate)
	eventually(t, func() bool { return c.State(slow) == Synced })
	c.Close()
	assert.Len(t, w.Calls(), 2)
}

func TestCloseDropsPendingIntents(t *testing.T) {
	w := &fakeWriter{}
	c := New(w, Options{Debounce: time.Hour})
	key := domain.TaskKey("t1")

	c.Toggle(key, true)
	c.Close()
	c.Toggle(key, false)

	assert.Empty(t, w.Calls())
	assert.False(t, c.Effective(key))
}
