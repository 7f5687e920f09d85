package widget

import (
	"context"
	"sync"
	"time"

	"skyview/internal/view"
)

type registryEntry struct {
	clientID string
	once     sync.Once
	session  *Session
	lastSeen time.Time
	watchers int
}

// Registry maps client IDs to sessions. Sessions are created on first use
// and dropped by Prune once idle for longer than the TTL.
type Registry struct {
	deps Deps
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewRegistry creates a Registry whose sessions share deps.
func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	return &Registry{
		deps:    deps.withDefaults(),
		ttl:     idleTTL,
		entries: make(map[string]*registryEntry),
	}
}

// Get returns the session for clientID, creating it if needed. The
// preference store is read once per created session, even when several
// requests for a new client arrive together.
func (r *Registry) Get(ctx context.Context, clientID string) *Session {
	return r.session(ctx, r.touch(clientID, 0))
}

// touch returns clientID's entry, creating it if needed, refreshes lastSeen
// and adds watchers, all under one lock so Prune never sees the entry
// half-registered.
func (r *Registry) touch(clientID string, watchers int) *registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[clientID]
	if !ok {
		e = &registryEntry{clientID: clientID}
		r.entries[clientID] = e
	}
	e.lastSeen = r.deps.Clock.Now()
	e.watchers += watchers
	return e
}

func (r *Registry) session(ctx context.Context, e *registryEntry) *Session {
	e.once.Do(func() {
		e.session = NewSession(ctx, e.clientID, r.deps)
	})
	return e.session
}

// View renders the current state of clientID's session.
func (r *Registry) View(ctx context.Context, clientID string) view.ViewModel {
	return r.Get(ctx, clientID).View()
}

// Lookup submits city on clientID's session.
func (r *Registry) Lookup(ctx context.Context, clientID, city string) (view.ViewModel, error) {
	return r.Get(ctx, clientID).Submit(ctx, city)
}

// SetLanguage changes and persists clientID's language.
func (r *Registry) SetLanguage(ctx context.Context, clientID, lang string) (view.ViewModel, error) {
	return r.Get(ctx, clientID).SetLanguage(ctx, lang)
}

// WatchView subscribes to changes of clientID's session. current renders the
// latest view and changes is signalled after every state change. The session
// is not pruned while a watch is open; stop must be called once the caller is
// done.
func (r *Registry) WatchView(ctx context.Context, clientID string) (current func() view.ViewModel, changes <-chan struct{}, stop func()) {
	e := r.touch(clientID, 1)
	s := r.session(ctx, e)
	changes, unwatch := s.Watch()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			unwatch()
			r.mu.Lock()
			e.watchers--
			e.lastSeen = r.deps.Clock.Now()
			r.mu.Unlock()
		})
	}
	return s.View, changes, stop
}

// Prune drops sessions idle for longer than the TTL and returns how many were
// removed. Watched sessions are kept.
func (r *Registry) Prune() int {
	cutoff := r.deps.Clock.Now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		if e.watchers == 0 && e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RunPruner calls Prune every interval until ctx is done.
func (r *Registry) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(); n > 0 {
				r.deps.Logger.Debug("pruned idle sessions", "count", n, "remaining", r.Len())
			}
		}
	}
}
