package domain

import (
	"encoding/json"
	"slices"
)

const MAX_CALIBRATION_POINTS = 8

type CalibrationPoint struct {
	DistanceCm float64 `json:"distance_cm" mapstructure:"distance_cm"`
	Percentage float64 `json:"percentage" mapstructure:"percentage"`
}

// CalibrationTable is an immutable sequence of points sorted ascending by
// distance. The zero value is an empty table.
type CalibrationTable struct {
	points []CalibrationPoint
}

// NewCalibrationTable copies the given points, clamps distances to
// [0, maxDistanceCm] and percentages to [0, 100], then sorts them by distance.
// The sort is stable, so points sharing a distance keep their input order.
// Only the first MAX_CALIBRATION_POINTS points (in sorted order) are kept.
func NewCalibrationTable(points []CalibrationPoint, maxDistanceCm float64) CalibrationTable {
	if len(points) == 0 {
		return CalibrationTable{}
	}
	pts := make([]CalibrationPoint, len(points))
	for i, p := range points {
		d := p.DistanceCm
		if d < 0 {
			d = 0
		}
		if maxDistanceCm > 0 && d > maxDistanceCm {
			d = maxDistanceCm
		}
		pts[i] = CalibrationPoint{DistanceCm: d, Percentage: ClampPercent(p.Percentage)}
	}
	slices.SortStableFunc(pts, func(a, b CalibrationPoint) int {
		switch {
		case a.DistanceCm < b.DistanceCm:
			return -1
		case a.DistanceCm > b.DistanceCm:
			return 1
		}
		return 0
	})
	if len(pts) > MAX_CALIBRATION_POINTS {
		pts = pts[:MAX_CALIBRATION_POINTS]
	}
	return CalibrationTable{points: pts}
}

func (t CalibrationTable) Len() int {
	return len(t.points)
}

// Points returns a copy of the table points.
func (t CalibrationTable) Points() []CalibrationPoint {
	return slices.Clone(t.points)
}

func (t CalibrationTable) Interpolate(distanceCm float64) float64 {
	n := len(t.points)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return t.points[0].Percentage
	}
	first, last := t.points[0], t.points[n-1]
	if distanceCm <= first.DistanceCm {
		return first.Percentage
	}
	if distanceCm >= last.DistanceCm {
		return last.Percentage
	}
	for i := 0; i < n-1; i++ {
		p1, p2 := t.points[i], t.points[i+1]
		if distanceCm >= p1.DistanceCm && distanceCm <= p2.DistanceCm {
			span := p2.DistanceCm - p1.DistanceCm
			if span == 0 {
				return p1.Percentage
			}
			return p1.Percentage + (distanceCm-p1.DistanceCm)*(p2.Percentage-p1.Percentage)/span
		}
	}
	return last.Percentage
}

func (t CalibrationTable) MarshalJSON() ([]byte, error) {
	if t.points == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.points)
}

// UnmarshalJSON sorts and clamps the points like NewCalibrationTable, without
// a distance limit.
func (t *CalibrationTable) UnmarshalJSON(data []byte) error {
	var points []CalibrationPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	*t = NewCalibrationTable(points, 0)
	return nil
}
