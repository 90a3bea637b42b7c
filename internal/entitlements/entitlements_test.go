package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuestIgnoresPlanArgument(t *testing.T) {
	// Guests have no plan, even when a caller passes one
	ent := Resolve(OwnerGuest, PlanEnterprise)
	assert.Equal(t, Plan("guest"), ent.Plan)
	assert.Equal(t, uint32(3), ent.DailyBurstCap)
	assert.False(t, ent.FaceEnhance)

	assert.Equal(t, ent, Resolve(OwnerGuest, ""))
	assert.Equal(t, ent, Resolve(OwnerGuest, PlanFree))
}

func TestUnknownUserPlanDefaultsToFree(t *testing.T) {
	assert.Equal(t, Resolve(OwnerUser, PlanFree), Resolve(OwnerUser, ""))
	assert.Equal(t, Resolve(OwnerUser, PlanFree), Resolve(OwnerUser, Plan("platinum")))
}

func TestPlansAreOrderedByCapability(t *testing.T) {
	free := Resolve(OwnerUser, PlanFree)
	pro := Resolve(OwnerUser, PlanPro)
	premium := Resolve(OwnerUser, PlanPremium)
	enterprise := Resolve(OwnerUser, PlanEnterprise)

	assert.Less(t, free.DailyBurstCap, pro.DailyBurstCap)
	assert.Less(t, pro.DailyBurstCap, premium.DailyBurstCap)
	assert.Less(t, premium.DailyBurstCap, enterprise.DailyBurstCap)

	assert.False(t, free.FaceEnhance)
	assert.True(t, pro.FaceEnhance)
}

func TestResolveIsDeterministic(t *testing.T) {
	first := Resolve(OwnerUser, PlanPro)
	second := Resolve(OwnerUser, PlanPro)
	assert.Equal(t, first, second)
}
