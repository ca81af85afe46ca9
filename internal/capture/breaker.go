package capture

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// breakerMaxFailures is the number of consecutive recognition failures
	// before the dispatcher stops feeding the engine.
	breakerMaxFailures = 3

	// breakerCooldown is how long the dispatcher waits after tripping before
	// sending a probe window to the engine.
	breakerCooldown = 10 * time.Second
)

// Breaker guards the recognition engine against being hammered with windows
// while it is persistently failing. After breakerMaxFailures consecutive
// failures it trips and windows are dropped for breakerCooldown; then a
// single probe window is let through. A successful probe closes the breaker,
// a failed one restarts the cooldown.
//
// Safe for concurrent use, though the single-flight dispatcher means at most
// one recognition outcome is reported at a time.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	fails    int
	tripped  bool
	openedAt time.Time
	probing  bool
}

// NewBreaker returns a closed breaker with the package defaults.
func NewBreaker() *Breaker {
	return &Breaker{
		maxFailures: breakerMaxFailures,
		cooldown:    breakerCooldown,
		now:         time.Now,
	}
}

// Allow reports whether a window may be sent to the engine right now.
// When the cooldown of a tripped breaker has elapsed, Allow admits exactly
// one probe window until its outcome is reported.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return true
	}
	if b.probing {
		return false
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return false
	}
	b.probing = true
	slog.Info("recognition breaker sending probe window")
	return true
}

// Success reports a successful recognition pass and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tripped {
		slog.Info("recognition breaker closed after successful probe")
	}
	b.fails = 0
	b.tripped = false
	b.probing = false
}

// Failure reports a failed recognition pass. A failure while tripped (the
// probe window) restarts the cooldown; otherwise consecutive failures are
// counted until the breaker trips.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tripped {
		b.openedAt = b.now()
		b.probing = false
		slog.Warn("recognition breaker re-opened after failed probe")
		return
	}

	b.fails++
	if b.fails >= b.maxFailures {
		b.tripped = true
		b.openedAt = b.now()
		slog.Warn("recognition breaker tripped",
			"consecutive_failures", b.fails)
	}
}

// Tripped reports whether the breaker is currently rejecting windows.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped && !b.probing && b.now().Sub(b.openedAt) < b.cooldown
}
