// Package engine provides gesture throttling for scroll-driven navigation.
package engine

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultScrollWindow is the window within which repeated scroll gestures from
// a single continuous motion are discarded. Without it one fast scroll can
// fire many transitions.
const DefaultScrollWindow = 500 * time.Millisecond

// NavThrottle discards navigation gestures that arrive within a fixed window
// of the previous accepted gesture for the same session.
type NavThrottle struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewNavThrottle creates a throttle with the given window. A non-positive
// window falls back to DefaultScrollWindow.
func NewNavThrottle(window time.Duration) *NavThrottle {
	if window <= 0 {
		window = DefaultScrollWindow
	}
	return &NavThrottle{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether a gesture for the session may proceed, recording the
// gesture time when it does.
func (t *NavThrottle) Allow(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if last, ok := t.last[sessionID]; ok && now.Sub(last) < t.window {
		slog.Debug("NavThrottle discarded gesture", "sessionID", sessionID)
		return false
	}
	t.last[sessionID] = now
	return true
}

// Forget drops the throttle record for a session, typically when it ends.
func (t *NavThrottle) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, sessionID)
}
