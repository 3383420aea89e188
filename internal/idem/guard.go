// Package idem deduplicates order submissions by client-generated
// idempotency key. The in-memory layer catches concurrent duplicates within
// one process; the persistent layer (a find-by-key on the order table,
// performed by the pipeline) survives restarts and is the real guarantee.
package idem

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long a key stays in the in-flight set if its request
// never completes. Expiry self-heals leaked keys and caps memory growth.
const DefaultTTL = 60 * time.Second

// Guard tracks idempotency keys currently being processed by this process.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewGuard creates a guard with the default safety window.
func NewGuard() *Guard {
	return &Guard{
		inflight: make(map[string]time.Time),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
}

// Begin registers the key as in-flight. The check and the insert happen under
// one mutex hold, so two concurrent submissions with the same key cannot both
// pass. Returns a release func (idempotent, always safe to defer) and whether
// the key was already in flight. An empty key never dedups.
func (g *Guard) Begin(key string) (release func(), inflight bool) {
	noop := func() {}
	if key == "" {
		return noop, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if started, ok := g.inflight[key]; ok && g.now().Sub(started) < g.ttl {
		return noop, true
	}
	g.inflight[key] = g.now()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, false
}

// Len returns the number of keys currently tracked, expired ones included.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}
