package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestParseTankShape(t *testing.T) {

	assert := assert.New(t)

	for _, shape := range []TankShape{TankShapeRectangular, TankShapeCylinderVertical, TankShapeCylinderHorizontal, TankShapeCustom} {
		parsed, ok := ParseTankShape(shape.String())
		assert.True(ok)
		assert.Equal(shape, parsed)
	}

	parsed, ok := ParseTankShape("Cylindrical_Laying_Flat")
	assert.True(ok)
	assert.Equal(TankShapeCylinderHorizontal, parsed)

	_, ok = ParseTankShape("spherical")
	assert.False(ok)
}

func TestNormalize(t *testing.T) {

	assert := assert.New(t)

	cfg := DefaultDeviceConfig()
	cfg.DeviceName = "Port+Fuel+" + strings.Repeat("x", 40)
	cfg.TransmissionIntervalMs = 60000
	cfg.Tank.LowAlarmPct = -1
	cfg.Tank.HighAlarmPct = 101

	n := cfg.Normalize()
	assert.Len(n.DeviceName, MAX_DEVICE_NAME_LENGTH)
	assert.True(strings.HasPrefix(n.DeviceName, "Port Fuel "))
	assert.Equal(uint32(MAX_TRANSMISSION_INTERVAL), n.TransmissionIntervalMs)
	assert.Equal(0.0, n.Tank.LowAlarmPct)
	assert.Equal(100.0, n.Tank.HighAlarmPct)

	cfg.TransmissionIntervalMs = 10
	assert.Equal(uint32(MIN_TRANSMISSION_INTERVAL), cfg.Normalize().TransmissionIntervalMs)
}

func TestAlarmTransitionThen(t *testing.T) {

	assert := assert.New(t)

	raisedLow := AlarmTransition{Low: AlarmEdgeRaised}
	clearedLow := AlarmTransition{Low: AlarmEdgeCleared}
	raisedHigh := AlarmTransition{High: AlarmEdgeRaised}

	assert.Equal(raisedLow, AlarmTransition{}.Then(raisedLow))
	assert.Equal(raisedLow, raisedLow.Then(AlarmTransition{}))
	assert.Equal(AlarmTransition{Low: AlarmEdgeRaised, High: AlarmEdgeRaised}, raisedLow.Then(raisedHigh))
	assert.False(raisedLow.Then(clearedLow).Any())
	assert.Equal(raisedLow, raisedLow.Then(clearedLow).Then(raisedLow))
}

func TestNormalizeDeviceNameKeepsRunesWhole(t *testing.T) {

	assert := assert.New(t)

	// "Ä" straddles the 31 byte limit
	name := NormalizeDeviceName("Tankanzeige Wassertank Küche ÄÖÜ")
	assert.True(utf8.ValidString(name))
	assert.Equal("Tankanzeige Wassertank Küche ", name)
	assert.LessOrEqual(len(name), MAX_DEVICE_NAME_LENGTH)

	assert.Equal("Frischwasser Öl", NormalizeDeviceName("Frischwasser+Öl"))
	assert.Equal("", TruncateUTF8("€", 2))
}

func TestDefaultDeviceConfig(t *testing.T) {

	assert := assert.New(t)

	cfg := DefaultDeviceConfig()
	assert.Equal(DEFAULT_DEVICE_NAME, cfg.DeviceName)
	assert.Equal(uint32(1000), cfg.TransmissionIntervalMs)
	assert.Equal([]CalibrationPoint{{20, 100}, {120, 0}}, cfg.Calibration.Points())
}
