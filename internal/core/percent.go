package core

import "math"

// Percent returns round(used/total*100). A non-positive total yields 0 and
// negative results clamp to 0. Values above 100 (overage) are kept.
func Percent(used, total float64) int {
	if total <= 0 {
		return 0
	}
	return RoundPercent(used / total * 100)
}

// RoundPercent rounds a ready-made percentage, clamping below at 0.
func RoundPercent(p float64) int {
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	if math.IsInf(p, 1) {
		return math.MaxInt32
	}
	return int(math.Round(p))
}
