package ratelimit

import (
	"context"
	"testing"

	"github.com/lumenworks/usage-gate/internal/counterstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, policies ...Policy) *Registry {
	t.Helper()

	registry := NewRegistry(counterstore.NewMemoryStore())
	for _, policy := range policies {
		require.NoError(t, registry.Register(policy))
	}

	return registry
}

func TestRegisterValidation(t *testing.T) {
	registry := NewRegistry(counterstore.NewMemoryStore())

	assert.ErrorIs(t, registry.Register(Policy{Name: "", MaxRequests: 1, WindowMs: 1}), ErrInvalidPolicy)
	assert.ErrorIs(t, registry.Register(Policy{Name: "a", MaxRequests: 0, WindowMs: 1}), ErrInvalidPolicy)
	assert.ErrorIs(t, registry.Register(Policy{Name: "a", MaxRequests: 1, WindowMs: 0}), ErrInvalidPolicy)
	assert.ErrorIs(t, registry.Register(Policy{Name: "a:b", MaxRequests: 1, WindowMs: 1}), ErrInvalidPolicy)

	require.NoError(t, registry.Register(Policy{Name: "a", MaxRequests: 1, WindowMs: 1}))
	assert.ErrorIs(t, registry.Register(Policy{Name: "a", MaxRequests: 2, WindowMs: 2}), ErrInvalidPolicy)
}

func TestCheckUnregisteredPolicy(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Check(context.Background(), "ghost", "1.2.3.4")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestResetIdempotence(t *testing.T) {
	policy := Policy{Name: "auth", MaxRequests: 1, WindowMs: 60000}
	registry := newTestRegistry(t, policy)
	ctx := context.Background()

	// Reset on a non-existent key reports false and changes nothing
	existed, err := registry.Reset(ctx, "auth", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, existed)

	// Exhaust the window
	result, err := registry.Check(ctx, "auth", "1.2.3.4")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = registry.Check(ctx, "auth", "1.2.3.4")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// Reset deletes the counter
	existed, err = registry.Reset(ctx, "auth", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, existed)

	// The next check behaves like a first request
	result, err = registry.Check(ctx, "auth", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestStateSnapshot(t *testing.T) {
	policy := Policy{Name: "auth", MaxRequests: 5, WindowMs: 60000}
	registry := newTestRegistry(t, policy)
	ctx := context.Background()

	for _, identity := range []string{"1.2.3.4", "5.6.7.8"} {
		_, err := registry.Check(ctx, "auth", identity)
		require.NoError(t, err)
		_, err = registry.Check(ctx, "auth", identity)
		require.NoError(t, err)
	}

	states, err := registry.State(ctx, "auth")
	require.NoError(t, err)
	require.Contains(t, states, "auth")

	state := states["auth"]
	assert.Equal(t, uint32(2), state.ActiveKeys)
	require.Len(t, state.SampleCounters, 2)
	for _, sample := range state.SampleCounters {
		assert.Equal(t, uint32(2), sample.Count)
		assert.Greater(t, sample.ResetsInSec, 0)
	}
}

func TestStateUnknownPolicy(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.State(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestStateAllPolicies(t *testing.T) {
	registry := newTestRegistry(t,
		Policy{Name: "auth", MaxRequests: 5, WindowMs: 60000},
		Policy{Name: "enhancer", MaxRequests: 30, WindowMs: 60000},
	)

	states, err := registry.State(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, states, 2)
}
