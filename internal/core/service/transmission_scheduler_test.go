package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReady(t *testing.T) {

	assert := assert.New(t)

	assert.False(Ready(999, 0, 1000))
	assert.True(Ready(1000, 0, 1000))
	assert.True(Ready(5000, 0, 1000))
}

func TestSchedulerFiresOncePerInterval(t *testing.T) {

	s := TransmissionScheduler{}
	fired := 0
	for now := uint32(0); now < 10_000; now += 10 {
		if s.Tick(now, 1000) {
			fired++
		}
	}
	// fires at 1000, 2000, ..., 9000
	assert.Equal(t, 9, fired)
}

func TestSchedulerAcrossWraparound(t *testing.T) {

	assert := assert.New(t)

	start := uint32(math.MaxUint32 - 2500)
	s := TransmissionScheduler{lastSentMs: start}

	var firedAt []uint32
	now := start
	for i := 0; i < 600; i++ {
		now += 10
		if s.Tick(now, 1000) {
			firedAt = append(firedAt, now)
		}
	}
	assert.Len(firedAt, 6)
	for i := 1; i < len(firedAt); i++ {
		assert.Equal(uint32(1000), firedAt[i]-firedAt[i-1])
	}
	// the counter wrapped between the second and third publish
	assert.Greater(firedAt[1], firedAt[2])
	assert.Equal(firedAt[len(firedAt)-1], s.LastSent())
}
