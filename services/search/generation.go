package search

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMaxSessions = 10000
	DefaultSessionIdle = 30 * time.Minute
)

// Tracker numbers searches per client session so a client can drop a response
// that arrives after a newer search was started. Searches are never aborted.
// Sessions idle for longer than the idle time are forgotten, and past the
// session limit the least recently searching session is dropped first.
type Tracker struct {
	// serializes the read-increment-write in Begin
	mu     sync.Mutex
	latest *expirable.LRU[string, uint64]
}

// NewTracker bounds the tracker to maxSessions sessions forgotten after idle.
// Non-positive values use the defaults.
func NewTracker(maxSessions int, idle time.Duration) *Tracker {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &Tracker{latest: expirable.NewLRU[string, uint64](maxSessions, nil, idle)}
}

// Begin records a new search for session and returns its generation.
func (t *Tracker) Begin(session string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	generation, _ := t.latest.Get(session)
	generation++
	t.latest.Add(session, generation)
	return generation
}

// IsLatest reports whether generation is the newest search begun for session.
// A session that was dropped has had no newer search since, so it counts as latest.
func (t *Tracker) IsLatest(session string, generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	latest, ok := t.latest.Peek(session)
	return !ok || latest == generation
}

// Len is the number of sessions currently tracked.
func (t *Tracker) Len() int {
	return t.latest.Len()
}
