package service

import (
	"math"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
)

// Estimate turns a raw sensor distance into a fill percentage and a volume in
// liters using a configuration snapshot.
func Estimate(rawDistanceCm float64, cfg *domain.DeviceConfig) (percent float64, volumeLiters float64) {
	adjusted := math.Max(0, rawDistanceCm-cfg.Tank.SensorOffsetCm)
	percent = FillPercent(cfg.Tank.Shape, adjusted, cfg.Tank.HeightCm-cfg.Tank.SensorOffsetCm, cfg.Calibration)
	// NaN from a corrupted reading degrades to the full tank default
	if math.IsNaN(percent) {
		percent = 100
	}
	percent = clamp(percent, 0, 100)
	volumeLiters = cfg.Tank.VolumeLiters * percent / 100
	return percent, volumeLiters
}

// Reading builds a LevelReading with the volume expressed in the configured
// display unit as well as in liters.
func Reading(rawDistanceCm float64, cfg *domain.DeviceConfig, alarms domain.AlarmState) domain.LevelReading {
	percent, volume := Estimate(rawDistanceCm, cfg)
	return domain.LevelReading{
		DistanceCm:    rawDistanceCm,
		Percent:       percent,
		VolumeLiters:  volume,
		VolumeDisplay: ConvertVolume(volume, domain.VolumeUnitLiter, cfg.Tank.VolumeUnit),
		VolumeUnit:    cfg.Tank.VolumeUnit,
		Alarms:        alarms,
	}
}
