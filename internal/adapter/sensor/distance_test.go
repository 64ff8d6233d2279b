package sensor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLastKnownDistance(t *testing.T) {

	assert := assert.New(t)
	d := NewLastKnownDistance(100)

	assert.Equal(100.0, d.Read())
	assert.True(d.ReadAt().IsZero())

	at := time.Now()
	d.Store(42.25, at)
	assert.Equal(42.25, d.Read())
	assert.Equal(at.UnixNano(), d.ReadAt().UnixNano())
}

func TestLastKnownDistanceConcurrent(t *testing.T) {

	d := NewLastKnownDistance(0)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				d.Store(v, time.Now())
				_ = d.Read()
			}
		}(float64(i * 10))
	}
	wg.Wait()

	assert.Contains(t, []float64{0, 10, 20, 30}, d.Read())
}
