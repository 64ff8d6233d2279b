package distance_modbus

import (
	"math"
	"sync"
)

// SimulatedDistanceReader returns a settable distance capped at the sensor range.
type SimulatedDistanceReader struct {
	mu            sync.Mutex
	distanceCm    float64
	maxDistanceCm float64
}

func NewSimulatedDistanceReader(initialCm float64, maxDistanceCm float64) *SimulatedDistanceReader {
	r := &SimulatedDistanceReader{maxDistanceCm: maxDistanceCm}
	r.Set(initialCm)
	return r
}

func (r *SimulatedDistanceReader) Open() error {
	return nil
}

func (r *SimulatedDistanceReader) Close() error {
	return nil
}

func (r *SimulatedDistanceReader) ReadDistanceCm() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.distanceCm, nil
}

// Set stores the distance and returns the value actually applied.
func (r *SimulatedDistanceReader) Set(distanceCm float64) float64 {
	if math.IsNaN(distanceCm) || distanceCm < 0 {
		distanceCm = 0
	}
	if r.maxDistanceCm > 0 && distanceCm > r.maxDistanceCm {
		distanceCm = r.maxDistanceCm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distanceCm = distanceCm
	return distanceCm
}
