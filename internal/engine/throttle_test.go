package engine

import (
	"testing"
	"time"
)

func TestNavThrottleDiscardsRapidGestures(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	throttle := NewNavThrottle(DefaultScrollWindow)
	throttle.now = func() time.Time { return current }

	if !throttle.Allow("s1") {
		t.Fatal("first gesture should be allowed")
	}
	current = base.Add(100 * time.Millisecond)
	if throttle.Allow("s1") {
		t.Error("gesture 100ms after the last should be discarded")
	}
	current = base.Add(499 * time.Millisecond)
	if throttle.Allow("s1") {
		t.Error("gesture just inside the window should be discarded")
	}
	current = base.Add(500 * time.Millisecond)
	if !throttle.Allow("s1") {
		t.Error("gesture at the window boundary should be allowed")
	}
}

func TestNavThrottleIsPerSession(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	throttle := NewNavThrottle(DefaultScrollWindow)
	throttle.now = func() time.Time { return base }

	if !throttle.Allow("s1") {
		t.Fatal("first gesture for s1 should be allowed")
	}
	if !throttle.Allow("s2") {
		t.Error("s2 should not be throttled by s1's gesture")
	}
}

func TestNavThrottleForget(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	throttle := NewNavThrottle(DefaultScrollWindow)
	throttle.now = func() time.Time { return base }

	if !throttle.Allow("s1") {
		t.Fatal("first gesture should be allowed")
	}
	throttle.Forget("s1")
	if !throttle.Allow("s1") {
		t.Error("gesture after Forget should be allowed")
	}
}

func TestNavThrottleDefaultWindow(t *testing.T) {
	throttle := NewNavThrottle(0)
	if throttle.window != DefaultScrollWindow {
		t.Errorf("expected default window %v, got %v", DefaultScrollWindow, throttle.window)
	}
}
