// Package resilience guards calls to flaky upstreams, such as radio stream
// metadata endpoints, with circuit breakers.
//
// A [Breaker] moves between three states: closed (calls pass), open (calls
// are rejected with [ErrOpen]) and half-open (a bounded number of probes may
// pass). A [Set] keeps one breaker per key so a single unreachable host does
// not affect the others.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a [Breaker]. Zero values fall back to the defaults below.
type Config struct {
	// Name labels log lines.
	Name string

	// MaxFailures is the number of consecutive failures that trips the breaker.
	MaxFailures int

	// Cooldown is how long an open breaker waits before allowing probes.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close.
	Probes int
}

const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 2 * time.Minute
	DefaultProbes      = 1
)

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.Probes <= 0 {
		c.Probes = DefaultProbes
	}
	return c
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
}

// NewBreaker returns a closed [Breaker].
func NewBreaker(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// Do runs fn when the breaker admits the call and records its outcome.
// A cancelled ctx is not counted as an upstream failure; an expired deadline
// is.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		b.release(probe)
		return err
	}
	b.record(probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		b.inFlight = 0
		b.successes = 0
		slog.Debug("circuit half-open", "name", b.cfg.Name)
	}
	if b.state == StateHalfOpen {
		if b.inFlight >= b.cfg.Probes {
			return false, ErrOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) release(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		if b.state != StateHalfOpen {
			return
		}
		b.inFlight--
		if err != nil {
			b.trip()
			return
		}
		b.successes++
		if b.successes >= b.cfg.Probes {
			b.state = StateClosed
			b.failures = 0
			slog.Info("circuit closed", "name", b.cfg.Name)
		}
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.cfg.MaxFailures {
		b.trip()
	}
}

// trip opens the breaker. b.mu must be held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.inFlight = 0
	b.successes = 0
	slog.Warn("circuit opened", "name", b.cfg.Name, "failures", b.failures)
}

// State reports the current state. An open breaker whose cooldown has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// call to [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.inFlight = 0
	b.successes = 0
}

// Set lazily creates one [Breaker] per key.
type Set struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewSet returns an empty [Set] whose breakers share cfg. The key is appended
// to cfg.Name for logging.
func NewSet(cfg Config) *Set {
	return &Set{cfg: cfg.withDefaults(), breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for key, creating it if needed.
func (s *Set) Get(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[key]
	if !ok {
		cfg := s.cfg
		if cfg.Name != "" {
			cfg.Name += ":" + key
		} else {
			cfg.Name = key
		}
		b = NewBreaker(cfg)
		s.breakers[key] = b
	}
	return b
}

// Forget drops the breaker for key.
func (s *Set) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakers, key)
}

// Len returns the number of tracked keys.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.breakers)
}
