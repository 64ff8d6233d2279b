package config

import (
	"testing"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("TankLevel")
	assert.Nil(err)
	assert.Equal("tanklevel", topic)

	_, err = CheckMQTTTopic("tank/level")
	assert.NotNil(err)
}

func TestCheckNATSSubject(t *testing.T) {

	assert := assert.New(t)

	subject, err := CheckNATSSubject("Tanks.Boat_1")
	assert.Nil(err)
	assert.Equal("tanks.boat_1", subject)

	_, err = CheckNATSSubject("tanks..level")
	assert.NotNil(err)
	_, err = CheckNATSSubject("tanks.>")
	assert.NotNil(err)
}

func TestDeviceDefaults(t *testing.T) {

	assert := assert.New(t)

	defaults := DeviceDefaults{
		Name:                       "Fresh+Water",
		TransmissionIntervalMillis: 50,
		TankHeightCm:               80,
		TankVolumeLiters:           200,
		LowAlarmPercent:            -5,
		HighAlarmPercent:           120,
		TankShape:                  "cylindrical_laying_flat",
		DistanceUnit:               "cm",
		VolumeUnit:                 "liter",
		Calibration: []domain.CalibrationPoint{
			{DistanceCm: 150, Percentage: 0},
			{DistanceCm: 20, Percentage: 100},
		},
	}
	cfg, err := defaults.DeviceConfig(120)
	require.Nil(t, err)

	assert.Equal("Fresh Water", cfg.DeviceName)
	assert.Equal(uint32(domain.MIN_TRANSMISSION_INTERVAL), cfg.TransmissionIntervalMs)
	assert.Equal(0.0, cfg.Tank.LowAlarmPct)
	assert.Equal(100.0, cfg.Tank.HighAlarmPct)
	assert.Equal(domain.TankShapeCylinderHorizontal, cfg.Tank.Shape)
	assert.Equal([]domain.CalibrationPoint{{DistanceCm: 20, Percentage: 100}, {DistanceCm: 120, Percentage: 0}}, cfg.Calibration.Points())

	defaults.TankShape = "spherical"
	_, err = defaults.DeviceConfig(120)
	assert.NotNil(err)
}
