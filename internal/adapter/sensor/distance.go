package sensor

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/port"
)

// LastKnownDistance is a lock free holder for the most recent sensor value.
// Read never blocks.
type LastKnownDistance struct {
	bits   atomic.Uint64
	readAt atomic.Int64
}

func NewLastKnownDistance(initialCm float64) *LastKnownDistance {
	d := &LastKnownDistance{}
	d.bits.Store(math.Float64bits(initialCm))
	return d
}

func (d *LastKnownDistance) Read() float64 {
	return math.Float64frombits(d.bits.Load())
}

func (d *LastKnownDistance) Store(distanceCm float64, at time.Time) {
	d.bits.Store(math.Float64bits(distanceCm))
	d.readAt.Store(at.UnixNano())
}

// ReadAt is the zero time until the first successful read.
func (d *LastKnownDistance) ReadAt() time.Time {
	n := d.readAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

var _ port.DistanceSource = (*LastKnownDistance)(nil)
