package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/lumenworks/usage-gate/internal/counterstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, policy Policy) (*FixedWindowLimiter, *time.Time) {
	t.Helper()

	now := time.Unix(1700000000, 0)
	limiter := NewFixedWindow(counterstore.NewMemoryStore(), policy)
	limiter.now = func() time.Time { return now }

	return limiter, &now
}

func TestWindowCapInvariant(t *testing.T) {
	policy := Policy{Name: "auth", MaxRequests: 5, WindowMs: 60000}
	limiter, now := newTestLimiter(t, policy)
	ctx := context.Background()

	// N requests within the window are all allowed
	for i := 0; i < 5; i++ {
		*now = now.Add(time.Second)
		result, err := limiter.Check(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}

	// Request N+1 within the same window is denied
	*now = now.Add(time.Second)
	result, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.GreaterOrEqual(t, result.RetryAfterSeconds, 1)
	assert.LessOrEqual(t, result.RetryAfterSeconds, 60)
}

func TestWindowReset(t *testing.T) {
	policy := Policy{Name: "auth", MaxRequests: 2, WindowMs: 60000}
	limiter, now := newTestLimiter(t, policy)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// Past the window the identity starts a fresh count
	*now = now.Add(61 * time.Second)
	result, err = limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, policy.MaxRequests-1, result.Remaining)
}

func TestIdentitiesAreIndependent(t *testing.T) {
	policy := Policy{Name: "auth", MaxRequests: 1, WindowMs: 60000}
	limiter, _ := newTestLimiter(t, policy)
	ctx := context.Background()

	result, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	result, err = limiter.Check(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestFailOpenOnStoreError(t *testing.T) {
	policy := Policy{Name: "auth", MaxRequests: 1, WindowMs: 60000}

	flaky := &failingStore{}
	limiter := NewFixedWindow(flaky, policy)

	result, err := limiter.Check(context.Background(), "1.2.3.4")
	assert.Error(t, err)
	assert.True(t, result.Allowed, "store failure must fail open")
}

func TestMalformedRecordTreatedAsAbsent(t *testing.T) {
	policy := Policy{Name: "auth", MaxRequests: 1, WindowMs: 60000}
	store := counterstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "auth:1.2.3.4", "{not json", time.Minute))

	limiter := NewFixedWindow(store, policy)
	result, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

type failingStore struct{}

func (f *failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, counterstore.ErrUnavailable
}

func (f *failingStore) Put(context.Context, string, string, time.Duration) error {
	return counterstore.ErrUnavailable
}

func (f *failingStore) Delete(context.Context, string) (bool, error) {
	return false, counterstore.ErrUnavailable
}

func (f *failingStore) ListByPrefix(context.Context, string, int) ([]string, error) {
	return nil, counterstore.ErrUnavailable
}
