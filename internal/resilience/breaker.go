package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all requests and tracks failures.
	Closed State = iota
	// Open rejects requests until the cool-off period expires.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker opens after Threshold consecutive failures and stays open for OpenFor.
// It protects optional dependencies such as the discount cache so a failing
// Redis is skipped instead of timing out on every quote.
type Breaker struct {
	Threshold int
	OpenFor   time.Duration
	// OnTransition observes state changes.
	OnTransition func(from, to State)
	Now          func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.openFor() {
			return false
		}
		b.transitionLocked(HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Report records the outcome of a call admitted by Allow.
func (b *Breaker) Report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		b.probing = false
		if b.state != Closed {
			b.transitionLocked(Closed)
		}
		return
	}
	switch b.state {
	case HalfOpen:
		b.probing = false
		b.openLocked()
	case Closed:
		b.failures++
		if b.failures >= b.threshold() {
			b.openLocked()
		}
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) openLocked() {
	b.openedAt = b.now()
	b.failures = 0
	b.transitionLocked(Open)
}

func (b *Breaker) transitionLocked(next State) {
	prev := b.state
	b.state = next
	if prev != next && b.OnTransition != nil {
		b.OnTransition(prev, next)
	}
}

func (b *Breaker) threshold() int {
	if b.Threshold <= 0 {
		return 5
	}
	return b.Threshold
}

func (b *Breaker) openFor() time.Duration {
	if b.OpenFor <= 0 {
		return 30 * time.Second
	}
	return b.OpenFor
}

func (b *Breaker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
