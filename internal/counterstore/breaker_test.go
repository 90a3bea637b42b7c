package counterstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails every call until healed
type flakyStore struct {
	inner   Store
	failing bool
}

var errBackendDown = errors.New("connection refused")

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failing {
		return "", false, errBackendDown
	}
	return f.inner.Get(ctx, key)
}

func (f *flakyStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.failing {
		return errBackendDown
	}
	return f.inner.Put(ctx, key, value, ttl)
}

func (f *flakyStore) Delete(ctx context.Context, key string) (bool, error) {
	if f.failing {
		return false, errBackendDown
	}
	return f.inner.Delete(ctx, key)
}

func (f *flakyStore) ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	if f.failing {
		return nil, errBackendDown
	}
	return f.inner.ListByPrefix(ctx, prefix, limit)
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failing: true}
	breaker := NewBreakerStore(flaky, BreakerConfig{MaxFailures: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := breaker.Get(ctx, "k")
		require.ErrorIs(t, err, errBackendDown)
	}

	assert.Equal(t, BreakerOpen, breaker.State())

	// Once open, calls short-circuit with ErrUnavailable
	_, _, err := breaker.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failing: true}
	breaker := NewBreakerStore(flaky, BreakerConfig{MaxFailures: 1, Cooldown: 10 * time.Millisecond})
	ctx := context.Background()

	_, _, err := breaker.Get(ctx, "k")
	require.ErrorIs(t, err, errBackendDown)
	require.Equal(t, BreakerOpen, breaker.State())

	// Backend heals, cooldown elapses, first probe closes the circuit
	flaky.failing = false
	time.Sleep(20 * time.Millisecond)

	_, _, err = breaker.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestBreakerClosedPassesThrough(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore()}
	breaker := NewBreakerStore(flaky, BreakerConfig{})
	ctx := context.Background()

	require.NoError(t, breaker.Put(ctx, "k", "v", time.Minute))

	val, found, err := breaker.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestBreakerManualReset(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failing: true}
	breaker := NewBreakerStore(flaky, BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})
	ctx := context.Background()

	_, _, _ = breaker.Get(ctx, "k")
	require.Equal(t, BreakerOpen, breaker.State())

	breaker.Reset()
	assert.Equal(t, BreakerClosed, breaker.State())
}
