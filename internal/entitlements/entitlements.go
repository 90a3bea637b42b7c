package entitlements

// Plan is a billing plan name as resolved by the subscription layer.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// OwnerType distinguishes authenticated users from anonymous guests.
type OwnerType string

const (
	OwnerUser  OwnerType = "user"
	OwnerGuest OwnerType = "guest"
)

// Entitlements is the capability/quota record for one plan. Static and
// immutable; callers use it to parameterize rate limits and to validate
// enhancement requests.
type Entitlements struct {
	Plan          Plan   `json:"plan"`
	DailyBurstCap uint32 `json:"daily_burst_cap"`
	MonthlyQuota  uint32 `json:"monthly_quota"`
	MaxUpscale    uint8  `json:"max_upscale"`
	FaceEnhance   bool   `json:"face_enhance"`
}

var planTable = map[Plan]Entitlements{
	PlanFree: {
		Plan:          PlanFree,
		DailyBurstCap: 10,
		MonthlyQuota:  30,
		MaxUpscale:    2,
		FaceEnhance:   false,
	},
	PlanPro: {
		Plan:          PlanPro,
		DailyBurstCap: 100,
		MonthlyQuota:  1000,
		MaxUpscale:    4,
		FaceEnhance:   true,
	},
	PlanPremium: {
		Plan:          PlanPremium,
		DailyBurstCap: 300,
		MonthlyQuota:  5000,
		MaxUpscale:    8,
		FaceEnhance:   true,
	},
	PlanEnterprise: {
		Plan:          PlanEnterprise,
		DailyBurstCap: 1000,
		MonthlyQuota:  50000,
		MaxUpscale:    8,
		FaceEnhance:   true,
	},
}

// Guests have no plan, so they get this fixed record no matter what plan
// value a caller passes
var guestEntitlements = Entitlements{
	Plan:          "guest",
	DailyBurstCap: 3,
	MonthlyQuota:  5,
	MaxUpscale:    2,
	FaceEnhance:   false,
}

// Resolve maps (owner type, plan) to an entitlements record. Pure lookup:
// no I/O, no side effects. Unknown or missing user plans default to free.
func Resolve(ownerType OwnerType, plan Plan) Entitlements {
	if ownerType == OwnerGuest {
		return guestEntitlements
	}

	if ent, ok := planTable[plan]; ok {
		return ent
	}

	return planTable[PlanFree]
}
