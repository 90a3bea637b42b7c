package credits

import "math"

// All credit quantities move through the system as integer tenths of a
// unit. These two helpers are the only float/int conversion points, so
// floating-point drift can never enter stored balances.

func ToTenths(units float64) int64 {
	return int64(math.Round(units * 10))
}

func FromTenths(tenths int64) float64 {
	return float64(tenths) / 10
}
