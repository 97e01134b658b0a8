package utils

import (
	"math"

	"driftnet/physics"
)

func FiniteVec(v physics.Vec2) bool {
	return IsFinite(v.X) && IsFinite(v.Y)
}

func IsFinite(f float32) bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
