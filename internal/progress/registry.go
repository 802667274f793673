// File: internal/progress/registry.go
// Description: In-process pub/sub for session lifecycle events. The registry
// is an explicit, injected dependency with explicit lifecycle; there is no
// package-level singleton. Publishing never blocks the orchestrator: events
// to absent or slow subscribers are dropped.
package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

// subscriberBuffer bounds each subscriber channel; a consumer that falls
// further behind than this loses events, by design of the stream (the
// session record is the source of truth).
const subscriberBuffer = 64

// Registry implements schemas.ProgressEmitter as a concurrent map of
// per-session broadcasters.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*broadcaster
	logger   *zap.Logger
}

type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan schemas.Event
	nextID int
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*broadcaster),
		logger:   logger.Named("progress"),
	}
}

// broadcasterFor returns the session's broadcaster, creating it on first
// touch so subscribers may attach before the first publish.
func (r *Registry) broadcasterFor(sessionID string) *broadcaster {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.sessions[sessionID]
	if !ok {
		b = &broadcaster{subs: make(map[int]chan schemas.Event)}
		r.sessions[sessionID] = b
	}
	return b
}

// Publish implements schemas.ProgressEmitter. Slow subscribers are skipped
// rather than waited on.
func (r *Registry) Publish(ev schemas.Event) {
	b := r.broadcasterFor(ev.SessionID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full; drop.
		}
	}
}

// Subscribe attaches a consumer to the session's event stream. The returned
// cancel function detaches it; it is safe to call more than once. Consumers
// may join mid-stream and must tolerate missing earlier events.
func (r *Registry) Subscribe(sessionID string) (<-chan schemas.Event, func()) {
	b := r.broadcasterFor(sessionID)

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan schemas.Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// CloseAfter implements schemas.ProgressEmitter: the session channel stays
// alive for the grace period so lagging subscribers receive the terminal
// events, then is torn down.
func (r *Registry) CloseAfter(sessionID string, grace time.Duration) {
	go func() {
		if grace > 0 {
			time.Sleep(grace)
		}
		r.remove(sessionID)
	}()
}

func (r *Registry) remove(sessionID string) {
	r.mu.Lock()
	b, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	r.logger.Debug("Progress channel torn down.", zap.String("session_id", sessionID))
}

// Shutdown tears down every session channel immediately.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.remove(id)
	}
}
