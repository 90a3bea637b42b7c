package service

import (
	"context"
	"testing"

	"github.com/lumenworks/usage-gate/internal/counterstore"
	"github.com/lumenworks/usage-gate/internal/credits"
	"github.com/lumenworks/usage-gate/internal/entitlements"
	"github.com/lumenworks/usage-gate/internal/models"
	"github.com/lumenworks/usage-gate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanResolver struct {
	plan entitlements.Plan
}

func (s *stubPlanResolver) ResolvePlan(context.Context, string) (entitlements.Plan, error) {
	return s.plan, nil
}

func newTestUsageService(t *testing.T, plan entitlements.Plan) (*UsageService, *credits.Ledger) {
	t.Helper()

	store := counterstore.NewMemoryStore()

	registry := ratelimit.NewRegistry(store)
	require.NoError(t, registry.Register(ratelimit.Policy{Name: "enhancer", MaxRequests: 3, WindowMs: 60000}))

	ledger := credits.NewLedger(store)

	return NewUsageService(registry, ledger, &stubPlanResolver{plan: plan}), ledger
}

func TestAuthorizeDeductsForUser(t *testing.T) {
	svc, ledger := newTestUsageService(t, entitlements.PlanPro)
	ctx := context.Background()

	_, err := ledger.Grant(ctx, "user1", 100, 30)
	require.NoError(t, err)

	result, err := svc.Authorize(ctx, AuthorizeRequest{
		OwnerID:     "user1",
		OwnerType:   entitlements.OwnerUser,
		Tool:        "enhancer",
		ModelSlug:   "clarity-hd",
		Upscale:     4,
		FaceEnhance: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, models.DecisionAllowed, result.Decision)
	assert.Equal(t, int64(27), result.CostTenths)

	balance, err := ledger.Balance(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(73), balance)
}

func TestAuthorizeGuestSkipsLedger(t *testing.T) {
	svc, ledger := newTestUsageService(t, entitlements.PlanFree)
	ctx := context.Background()

	result, err := svc.Authorize(ctx, AuthorizeRequest{
		OwnerID:   "anon-abc",
		OwnerType: entitlements.OwnerGuest,
		Tool:      "enhancer",
		ModelSlug: "standard-v2",
		Upscale:   2,
	})
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// No pack was touched because guests carry no ledger
	balance, err := ledger.Balance(ctx, "anon-abc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestAuthorizeInsufficientCredits(t *testing.T) {
	svc, ledger := newTestUsageService(t, entitlements.PlanPro)
	ctx := context.Background()

	_, err := ledger.Grant(ctx, "user1", 5, 30)
	require.NoError(t, err)

	result, err := svc.Authorize(ctx, AuthorizeRequest{
		OwnerID:   "user1",
		OwnerType: entitlements.OwnerUser,
		Tool:      "enhancer",
		ModelSlug: "standard-v2",
	})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, models.DecisionInsufficientCredits, result.Decision)

	// The failed deduction mutated nothing
	balance, err := ledger.Balance(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestAuthorizeEntitlementViolations(t *testing.T) {
	svc, _ := newTestUsageService(t, entitlements.PlanFree)
	ctx := context.Background()

	// Free plan caps upscale at x2
	_, err := svc.Authorize(ctx, AuthorizeRequest{
		OwnerID:   "user1",
		OwnerType: entitlements.OwnerUser,
		Tool:      "enhancer",
		Upscale:   8,
	})
	assert.ErrorIs(t, err, ErrNotEntitled)

	// Free plan has no face enhancement
	_, err = svc.Authorize(ctx, AuthorizeRequest{
		OwnerID:     "user1",
		OwnerType:   entitlements.OwnerUser,
		Tool:        "enhancer",
		FaceEnhance: true,
	})
	assert.ErrorIs(t, err, ErrNotEntitled)
}

func TestAuthorizeRateLimited(t *testing.T) {
	svc, ledger := newTestUsageService(t, entitlements.PlanPro)
	ctx := context.Background()

	_, err := ledger.Grant(ctx, "user1", 1000, 30)
	require.NoError(t, err)

	req := AuthorizeRequest{
		OwnerID:   "user1",
		OwnerType: entitlements.OwnerUser,
		Tool:      "enhancer",
		ModelSlug: "standard-v2",
	}

	for i := 0; i < 3; i++ {
		result, err := svc.Authorize(ctx, req)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := svc.Authorize(ctx, req)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, models.DecisionRateLimited, result.Decision)
	assert.Greater(t, result.RetryAfterSeconds, 0)

	// Denied requests are never charged
	balance, err := ledger.Balance(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(970), balance)
}

func TestAuthorizeUnknownTool(t *testing.T) {
	svc, _ := newTestUsageService(t, entitlements.PlanPro)

	_, err := svc.Authorize(context.Background(), AuthorizeRequest{
		OwnerID:   "user1",
		OwnerType: entitlements.OwnerUser,
		Tool:      "teleporter",
	})
	assert.ErrorIs(t, err, ratelimit.ErrInvalidPolicy)
}
