package counterstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type BreakerState int

const (
	// BreakerClosed - normal operation, calls pass through to the backend
	BreakerClosed BreakerState = iota

	// BreakerOpen - backend presumed down, calls fail immediately
	BreakerOpen

	// BreakerHalfOpen - probing whether the backend recovered
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerStore wraps a Store with a circuit breaker. After MaxFailures
// consecutive backend errors the breaker opens and every call returns
// ErrUnavailable immediately for Cooldown, so rate-limit checks fail open
// fast instead of eating a timeout per request. A single success while
// half-open closes the circuit again.
type BreakerStore struct {
	inner Store

	mu              sync.RWMutex
	state           BreakerState
	failureCount    int
	lastFailureTime time.Time
	lastStateChange time.Time

	maxFailures int
	cooldown    time.Duration
}

type BreakerConfig struct {
	MaxFailures int           // Default: 5
	Cooldown    time.Duration // Default: 30 seconds
}

type BreakerMetrics struct {
	State           BreakerState `json:"state"`
	FailureCount    int          `json:"failure_count"`
	LastFailureTime time.Time    `json:"last_failure_time"`
	LastStateChange time.Time    `json:"last_state_change"`
}

func NewBreakerStore(inner Store, cfg BreakerConfig) *BreakerStore {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	return &BreakerStore{
		inner:           inner,
		state:           BreakerClosed,
		maxFailures:     cfg.MaxFailures,
		cooldown:        cfg.Cooldown,
		lastStateChange: time.Now(),
	}
}

func (b *BreakerStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := b.before(); err != nil {
		return "", false, err
	}

	val, ok, err := b.inner.Get(ctx, key)
	b.after(err)
	return val, ok, err
}

func (b *BreakerStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := b.before(); err != nil {
		return err
	}

	err := b.inner.Put(ctx, key, value, ttl)
	b.after(err)
	return err
}

func (b *BreakerStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := b.before(); err != nil {
		return false, err
	}

	deleted, err := b.inner.Delete(ctx, key)
	b.after(err)
	return deleted, err
}

func (b *BreakerStore) ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := b.before(); err != nil {
		return nil, err
	}

	keys, err := b.inner.ListByPrefix(ctx, prefix, limit)
	b.after(err)
	return keys, err
}

// Checks whether the call may proceed, transitioning open -> half-open
// once the cooldown has elapsed
func (b *BreakerStore) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if time.Since(b.lastFailureTime) > b.cooldown {
			b.setState(BreakerHalfOpen)
		} else {
			return fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
	}

	return nil
}

func (b *BreakerStore) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failureCount++
		b.lastFailureTime = time.Now()

		if b.state == BreakerHalfOpen || b.failureCount >= b.maxFailures {
			b.setState(BreakerOpen)
		}
		return
	}

	b.failureCount = 0
	if b.state == BreakerHalfOpen {
		b.setState(BreakerClosed)
	}
}

// Must be called with the lock held
func (b *BreakerStore) setState(newState BreakerState) {
	if b.state != newState {
		b.state = newState
		b.lastStateChange = time.Now()
	}
}

func (b *BreakerStore) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Manually closes the circuit
func (b *BreakerStore) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failureCount = 0
	b.lastStateChange = time.Now()
}

func (b *BreakerStore) Metrics() BreakerMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BreakerMetrics{
		State:           b.state,
		FailureCount:    b.failureCount,
		LastFailureTime: b.lastFailureTime,
		LastStateChange: b.lastStateChange,
	}
}
