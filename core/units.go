package core

import (
	"math"

	"github.com/signalsfoundry/planck-bridge/model"
)

// Fixed unit conversions used by the Planck dialect.
const (
	MetersToCm      = 100.0
	FeetToMeters    = 0.3048
	RadToCentiDeg   = 180.0 / math.Pi * 100.0
	DefaultAltCm    = 3048 // 100 ft
	TensionHighMark = 75
)

// ScaleVec converts a float32 triple to a Vector3 scaled by k.
func ScaleVec(v [3]float32, k float64) model.Vector3 {
	return model.Vector3{
		X: float64(v[0]) * k,
		Y: float64(v[1]) * k,
		Z: float64(v[2]) * k,
	}
}

// Vec converts three float32 components to a Vector3 scaled by k.
func Vec(x, y, z float32, k float64) model.Vector3 {
	return ScaleVec([3]float32{x, y, z}, k)
}

// CmFromMeters converts metres to whole centimetres, truncating toward zero
// and saturating at the int32 range. ok is false for NaN or infinite input.
func CmFromMeters(m float64) (cm int32, ok bool) {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0, false
	}
	return SaturateInt32(m * MetersToCm), true
}

// SaturateInt32 truncates v toward zero and clamps it to the int32 range.
// NaN maps to 0.
func SaturateInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
