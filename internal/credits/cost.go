package credits

// Per-operation cost tables, all in tenths. Pricing for the image
// enhancer: a base cost per model plus addons for upscale factor and
// face enhancement.

const (
	// Charged for model slugs missing from the table, so a newly shipped
	// model never hard-fails pricing
	defaultBaseTenths = 10

	// Every operation costs at least 0.1 units
	minCostTenths = 1

	faceEnhanceAddonTenths = 5
)

var modelBaseTenths = map[string]int64{
	"standard-v2":  10,
	"clarity-hd":   12,
	"portrait-pro": 15,
	"anime-detail": 8,
}

func upscaleAddonTenths(scale uint8) int64 {
	switch {
	case scale >= 8:
		return 20
	case scale >= 4:
		return 10
	default:
		return 0
	}
}

// EnhancerCost computes the tenths charged for one enhancement request.
func EnhancerCost(modelSlug string, scale uint8, faceEnhance bool) int64 {
	base, ok := modelBaseTenths[modelSlug]
	if !ok {
		base = defaultBaseTenths
	}

	cost := base + upscaleAddonTenths(scale)
	if faceEnhance {
		cost += faceEnhanceAddonTenths
	}

	if cost < minCostTenths {
		cost = minCostTenths
	}

	return cost
}
