package service

import (
	"math"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
)

// FillPercent maps an offset corrected distance to a fill percentage for the
// given shape. effectiveHeightCm is the tank height minus the sensor offset.
// The result is not clamped.
func FillPercent(shape domain.TankShape, distanceCm, effectiveHeightCm float64, table domain.CalibrationTable) float64 {
	// a tank with no usable height is reported as full
	if effectiveHeightCm <= 0 {
		return 100
	}
	switch shape {
	case domain.TankShapeRectangular, domain.TankShapeCylinderVertical:
		return 100 * (1 - clamp(distanceCm, 0, effectiveHeightCm)/effectiveHeightCm)
	case domain.TankShapeCylinderHorizontal:
		x := clamp(distanceCm, 0, effectiveHeightCm) / effectiveHeightCm
		return 100 * (1 - circularSegmentFraction(x))
	case domain.TankShapeCustom:
		return table.Interpolate(distanceCm)
	}
	return 100
}

// circularSegmentFraction returns the empty share of the cross section at
// relative depth x (0 at the top, 1 at the bottom). It exceeds 1 near the
// bottom, so the result of FillPercent must be clamped by the caller.
func circularSegmentFraction(x float64) float64 {
	x = clamp(x, 0, 1)
	return math.Acos(clamp(1-2*x, -1, 1))/math.Pi + (2*x-1)*math.Sqrt(math.Max(0, 2*x-x*x))/math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
