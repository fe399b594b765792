// Package circuit provides a small circuit breaker for optional dependencies
// that have a safe fallback path.
package circuit

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow to the dependency.
	StateClosed State = iota
	// StateOpen means calls are short-circuited to the fallback.
	StateOpen
	// StateHalfOpen means a single probe call is in flight.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Listener observes state transitions. It is called with the breaker lock
// released.
type Listener func(name string, from, to State)

// Breaker opens after FailureThreshold consecutive failures. Once the cooldown
// elapses a single probe is allowed through; its outcome closes the circuit or
// re-opens it for another cooldown.
//
// A nil *Breaker allows every call.
type Breaker struct {
	mu        sync.Mutex
	name      string
	state     State
	failures  int
	openedAt  time.Time
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	listener  Listener
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failures that open the circuit. Default 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before probing. Default 30s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithListener registers a state transition callback.
func WithListener(l Listener) Option {
	return func(b *Breaker) {
		b.listener = l
	}
}

// New creates a closed circuit breaker.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		state:     StateClosed,
		threshold: 5,
		cooldown:  30 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the breaker's name for logging and metrics.
func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether the caller may use the dependency. An open circuit
// whose cooldown has elapsed moves to half-open and admits exactly one caller.
func (b *Breaker) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return false
		}
		b.transition(StateHalfOpen)
		return true
	default:
		b.mu.Unlock()
		return false
	}
}

// Record reports the outcome of a call admitted by Allow.
func (b *Breaker) Record(err error) {
	if b == nil {
		return
	}
	b.mu.Lock()
	if err == nil {
		b.failures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
			return
		}
		b.mu.Unlock()
		return
	}

	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.openedAt = b.now()
		b.transition(StateOpen)
	case b.state == StateClosed && b.failures >= b.threshold:
		b.openedAt = b.now()
		b.transition(StateOpen)
	default:
		b.mu.Unlock()
	}
}

// transition changes state, releases the lock and notifies the listener.
// Callers must hold b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	listener := b.listener
	b.mu.Unlock()
	if listener != nil && from != to {
		listener(b.name, from, to)
	}
}
