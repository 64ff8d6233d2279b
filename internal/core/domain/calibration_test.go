package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTwoPointTableIsLinear(t *testing.T) {

	assert := assert.New(t)

	const height = 150.0
	table := NewCalibrationTable([]CalibrationPoint{{0, 100}, {height, 0}}, 200)

	for d := 0.0; d <= height; d += 2.5 {
		assert.InDelta(100*(1-d/height), table.Interpolate(d), 1e-9, "distance %v", d)
	}
}

func TestDegenerateTables(t *testing.T) {

	assert := assert.New(t)

	empty := NewCalibrationTable(nil, 120)
	assert.Equal(0, empty.Len())
	assert.Equal(0.0, empty.Interpolate(50))
	assert.Equal(0.0, CalibrationTable{}.Interpolate(50))

	single := NewCalibrationTable([]CalibrationPoint{{40, 65}}, 120)
	assert.Equal(65.0, single.Interpolate(0))
	assert.Equal(65.0, single.Interpolate(40))
	assert.Equal(65.0, single.Interpolate(1000))
}

func TestSaturationAtBoundaries(t *testing.T) {

	assert := assert.New(t)

	table := NewCalibrationTable([]CalibrationPoint{{20, 100}, {120, 0}}, 120)
	assert.Equal(100.0, table.Interpolate(0))
	assert.Equal(100.0, table.Interpolate(20))
	assert.Equal(0.0, table.Interpolate(120))
	assert.Equal(0.0, table.Interpolate(500))
	assert.InDelta(50.0, table.Interpolate(70), 1e-9)
}

func TestLoadSortsClampsAndTruncates(t *testing.T) {

	assert := assert.New(t)

	table := NewCalibrationTable([]CalibrationPoint{
		{90, 10}, {10, 95}, {300, -3}, {50, 140}, {-4, 100},
	}, 120)
	assert.Equal([]CalibrationPoint{
		{0, 100}, {10, 95}, {50, 100}, {90, 10}, {120, 0},
	}, table.Points())

	var many []CalibrationPoint
	for i := 10; i > 0; i-- {
		many = append(many, CalibrationPoint{DistanceCm: float64(i * 10), Percentage: float64(100 - i*10)})
	}
	truncated := NewCalibrationTable(many, 200)
	assert.Equal(MAX_CALIBRATION_POINTS, truncated.Len())
	assert.Equal(10.0, truncated.Points()[0].DistanceCm)
	assert.Equal(80.0, truncated.Points()[MAX_CALIBRATION_POINTS-1].DistanceCm)
}

func TestDuplicateDistancesKeepInputOrder(t *testing.T) {

	assert := assert.New(t)

	table := NewCalibrationTable([]CalibrationPoint{{100, 0}, {50, 70}, {0, 100}, {50, 40}}, 120)
	assert.Equal([]CalibrationPoint{{0, 100}, {50, 70}, {50, 40}, {100, 0}}, table.Points())

	// the first bracket in sorted order wins at an exact duplicate
	assert.Equal(70.0, table.Interpolate(50))
	assert.InDelta(85.0, table.Interpolate(25), 1e-9)
	assert.InDelta(20.0, table.Interpolate(75), 1e-9)
}

func TestInterpolateMonotone(t *testing.T) {

	table := NewCalibrationTable([]CalibrationPoint{{5, 100}, {30, 80}, {31, 79}, {60, 30}, {110, 0}}, 120)
	prev := table.Interpolate(-10)
	for d := -10.0; d <= 130; d += 0.5 {
		cur := table.Interpolate(d)
		assert.LessOrEqual(t, cur, prev, "distance %v", d)
		prev = cur
	}
}

func TestTableIsImmutable(t *testing.T) {

	points := []CalibrationPoint{{0, 100}, {100, 0}}
	table := NewCalibrationTable(points, 120)
	points[0].Percentage = 10
	out := table.Points()
	out[1].Percentage = 99

	assert.Equal(t, []CalibrationPoint{{0, 100}, {100, 0}}, table.Points())
}
