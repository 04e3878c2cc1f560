// Package optimistic shows the user's intent immediately and reconciles it with the server
// after a debounce window.
package optimistic

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/classtrack/domain"
)

// DefaultDebounce is the quiet period after the last intent before the write is sent.
const DefaultDebounce = 800 * time.Millisecond

type State int

const (
	Synced State = iota
	PendingLocal
	RollingBack
)

func (s State) String() string {
	switch s {
	case PendingLocal:
		return "pending_local"
	case RollingBack:
		return "rolling_back"
	default:
		return "synced"
	}
}

// Writer persists one completion flag and returns the task's statuses as stored by the server.
// *client.Client satisfies it.
type Writer interface {
	SetStatus(ctx context.Context, key domain.StatusKey, completed bool) ([]domain.CompletionRecord, error)
}

// View is what the UI renders for one key.
type View struct {
	Key       domain.StatusKey
	Effective bool
	Server    bool
	State     State
}

type Options struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
	// OnChange is called after every visible change of a key. It must not call back into the
	// controller synchronously.
	OnChange func(View)
	// OnError surfaces a failed write after its rollback. Failed writes are never retried.
	OnError func(key domain.StatusKey, err error)
	Logger  *zap.Logger
}

type entry struct {
	state    State
	target   bool
	snapshot bool
	gen      uint64
	timer    *time.Timer
	// inflight is set while a write for the key is outstanding; held marks a newer intent whose
	// debounce elapsed meanwhile and that is sent once the write settles.
	inflight bool
	held     bool
}

// Controller keeps one independent state machine per status key.
type Controller struct {
	writer Writer
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	server  map[domain.StatusKey]bool
	entries map[domain.StatusKey]*entry
	closed  bool
	wg      sync.WaitGroup
}

func New(writer Writer, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		writer:  writer,
		opts:    opts,
		logger:  logger,
		server:  make(map[domain.StatusKey]bool),
		entries: make(map[domain.StatusKey]*entry),
	}
}

// Sync adopts statuses fetched from the server, e.g. by a poll. Pending overrides stay visible.
func (c *Controller) Sync(taskID string, records []domain.CompletionRecord) {
	c.mu.Lock()
	changed := c.adopt(taskID, records)
	views := c.viewsLocked(changed)
	c.mu.Unlock()
	c.notify(views...)
}

// Toggle records the user's intent for key. The newest intent within the debounce window wins.
func (c *Controller) Toggle(key domain.StatusKey, completed bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	e, ok := c.entries[key]
	if !ok {
		e = &entry{snapshot: c.server[key]}
		c.entries[key] = e
	}
	e.state = PendingLocal
	e.target = completed
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
	}
	gen := e.gen
	e.timer = time.AfterFunc(c.opts.Debounce, func() { c.fire(key, gen) })
	view := c.viewLocked(key)
	c.mu.Unlock()

	c.notify(view)
}

// Effective is the value the UI shows for key.
func (c *Controller) Effective(key domain.StatusKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(key).Effective
}

func (c *Controller) State(key domain.StatusKey) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(key).State
}

// Close drops pending intents and waits for writes already sent.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	for key, e := range c.entries {
		if e.timer != nil && e.timer.Stop() {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) fire(key domain.StatusKey, gen uint64) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.gen != gen || c.closed {
		c.mu.Unlock()
		return
	}
	if e.inflight {
		e.held = true
		c.mu.Unlock()
		return
	}
	if e.target == c.server[key] {
		delete(c.entries, key)
		view := c.viewLocked(key)
		c.mu.Unlock()
		c.logger.Debug("toggle matches server state, skipping write", zap.Stringer("key", key))
		c.notify(view)
		return
	}
	e.inflight = true
	target := e.target
	c.wg.Add(1)
	c.mu.Unlock()

	defer c.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
	records, err := c.writer.SetStatus(ctx, key, target)
	cancel()

	if err != nil {
		c.rollback(key, gen, err)
		return
	}

	c.mu.Lock()
	changed := c.adopt(key.TaskID, records)
	next, resend := c.settleLocked(key, gen)
	views := c.viewsLocked(append(changed, key))
	c.mu.Unlock()
	c.notify(views...)
	if resend {
		c.fire(key, next)
	}
}

// settleLocked ends the outstanding write of key. It reports the generation of a held intent
// that must be sent now.
func (c *Controller) settleLocked(key domain.StatusKey, gen uint64) (uint64, bool) {
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	e.inflight = false
	if e.gen == gen {
		delete(c.entries, key)
		return 0, false
	}
	// The newer intent rolls back to what the server confirmed, not to the older snapshot.
	e.snapshot = c.server[key]
	if !e.held {
		return 0, false
	}
	e.held = false
	return e.gen, true
}

func (c *Controller) rollback(key domain.StatusKey, gen uint64, err error) {
	var dErr *domain.Error
	if !errors.As(err, &dErr) {
		err = domain.WrapError(domain.ErrCodeTransientNetwork, "saving status", err)
	}
	c.logger.Warn("status write failed, rolling back", zap.Stringer("key", key), zap.Error(err))

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.gen != gen {
		// A newer intent owns the key now.
		e.inflight = false
		next, resend := e.gen, e.held
		e.held = false
		c.mu.Unlock()
		c.reportError(key, err)
		if resend {
			c.fire(key, next)
		}
		return
	}
	if !ok {
		c.mu.Unlock()
		c.reportError(key, err)
		return
	}
	e.state = RollingBack
	rolling := c.viewLocked(key)
	c.server[key] = e.snapshot
	delete(c.entries, key)
	synced := c.viewLocked(key)
	c.mu.Unlock()

	c.notify(rolling)
	c.reportError(key, err)
	c.notify(synced)
}

// adopt stores the server view of a task. Keys of the task missing from records are not completed.
func (c *Controller) adopt(taskID string, records []domain.CompletionRecord) []domain.StatusKey {
	seen := make(map[domain.StatusKey]bool, len(records))
	var changed []domain.StatusKey
	for _, rec := range records {
		key := rec.Key()
		seen[key] = true
		if old, ok := c.server[key]; !ok || old != rec.IsCompleted {
			changed = append(changed, key)
		}
		c.server[key] = rec.IsCompleted
	}
	for key, v := range c.server {
		if key.TaskID == taskID && !seen[key] {
			if v {
				changed = append(changed, key)
			}
			c.server[key] = false
		}
	}
	return changed
}

func (c *Controller) viewLocked(key domain.StatusKey) View {
	server := c.server[key]
	view := View{Key: key, Effective: server, Server: server, State: Synced}
	if e, ok := c.entries[key]; ok {
		view.State = e.state
		if e.state == PendingLocal {
			view.Effective = e.target
		} else {
			view.Effective = e.snapshot
		}
	}
	return view
}

func (c *Controller) viewsLocked(keys []domain.StatusKey) []View {
	seen := make(map[domain.StatusKey]bool, len(keys))
	views := make([]View, 0, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		views = append(views, c.viewLocked(key))
	}
	return views
}

func (c *Controller) notify(views ...View) {
	if c.opts.OnChange == nil {
		return
	}
	for _, v := range views {
		c.opts.OnChange(v)
	}
}

func (c *Controller) reportError(key domain.StatusKey, err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(key, err)
	}
}
