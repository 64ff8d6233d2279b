package service

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"

	"go.uber.org/zap"
)

const (
	MIN_FORM_CALIBRATION_POINTS = 3
)

// TankSettingsForm carries raw operator input. Nil fields keep the current
// value. A nil Calibration keeps the current table.
type TankSettingsForm struct {
	TankHeight       *string
	TankVolume       *string
	SensorOffset     *string
	LowAlarmPercent  *string
	HighAlarmPercent *string
	TankShape        *string
	DistanceUnit     *string
	VolumeUnit       *string
	Calibration      []CalibrationPointForm
}

// CalibrationPointForm holds a distance in the form distance unit and a
// percentage.
type CalibrationPointForm struct {
	Distance   string
	Percentage string
}

type DeviceSettingsForm struct {
	DeviceName *string
	Interval   *string
}

// TankSettingsFormFromValues reads the url encoded field names used by the
// settings page. num_calibration_points is clamped to 3..8 and points missing
// either value are skipped. An explicit count of 0 submits an empty table.
func TankSettingsFormFromValues(values url.Values) TankSettingsForm {
	form := TankSettingsForm{
		TankHeight:       optionalValue(values, "tank_height"),
		TankVolume:       optionalValue(values, "tank_volume"),
		SensorOffset:     optionalValue(values, "sensor_offset"),
		LowAlarmPercent:  optionalValue(values, "low_alarm_percent"),
		HighAlarmPercent: optionalValue(values, "high_alarm_percent"),
		TankShape:        optionalValue(values, "tank_shape"),
		DistanceUnit:     optionalValue(values, "dist_unit"),
		VolumeUnit:       optionalValue(values, "vol_unit"),
	}
	numPoints := MIN_FORM_CALIBRATION_POINTS
	if v := optionalValue(values, "num_calibration_points"); v != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(*v)); err == nil {
			if n == 0 {
				form.Calibration = []CalibrationPointForm{}
				return form
			}
			numPoints = min(max(n, MIN_FORM_CALIBRATION_POINTS), domain.MAX_CALIBRATION_POINTS)
		}
	}
	for i := 0; i < numPoints; i++ {
		d := optionalValue(values, "calibration_distance_"+strconv.Itoa(i))
		p := optionalValue(values, "calibration_percentage_"+strconv.Itoa(i))
		if d != nil && p != nil {
			form.Calibration = append(form.Calibration, CalibrationPointForm{Distance: *d, Percentage: *p})
		}
	}
	return form
}

func DeviceSettingsFormFromValues(values url.Values) DeviceSettingsForm {
	return DeviceSettingsForm{
		DeviceName: optionalValue(values, "device_name"),
		Interval:   optionalValue(values, "interval"),
	}
}

func optionalValue(values url.Values, key string) *string {
	if !values.Has(key) {
		return nil
	}
	v := values.Get(key)
	return &v
}

// ApplyTankSettings returns a copy of current with the form applied. Numbers
// are read in the submitted units and stored in centimeters and liters. A
// field that fails to parse keeps its current value.
func ApplyTankSettings(current domain.DeviceConfig, form TankSettingsForm, logger *zap.Logger) domain.DeviceConfig {
	next := current
	tank := &next.Tank

	if form.DistanceUnit != nil {
		tank.DistanceUnit = domain.DistanceUnit(*form.DistanceUnit)
		if !KnownDistanceUnit(tank.DistanceUnit) {
			logger.Warn("tank_settings: unknown distance unit, values taken as centimeters", zap.String("unit", *form.DistanceUnit))
		}
	}
	if form.VolumeUnit != nil {
		tank.VolumeUnit = domain.VolumeUnit(*form.VolumeUnit)
		if !KnownVolumeUnit(tank.VolumeUnit) {
			logger.Warn("tank_settings: unknown volume unit, values taken as liters", zap.String("unit", *form.VolumeUnit))
		}
	}

	distField := func(name string, text *string, currentCm float64) float64 {
		if text == nil {
			return currentCm
		}
		def := ConvertDistance(currentCm, domain.DistanceUnitCentimeter, tank.DistanceUnit)
		v := parseLogged(logger, name, *text, def)
		return ConvertDistance(v, tank.DistanceUnit, domain.DistanceUnitCentimeter)
	}

	tank.HeightCm = distField("tank_height", form.TankHeight, current.Tank.HeightCm)
	tank.SensorOffsetCm = distField("sensor_offset", form.SensorOffset, current.Tank.SensorOffsetCm)
	if form.TankVolume != nil {
		def := ConvertVolume(current.Tank.VolumeLiters, domain.VolumeUnitLiter, tank.VolumeUnit)
		v := parseLogged(logger, "tank_volume", *form.TankVolume, def)
		tank.VolumeLiters = ConvertVolume(v, tank.VolumeUnit, domain.VolumeUnitLiter)
	}
	if form.LowAlarmPercent != nil {
		tank.LowAlarmPct = domain.ClampPercent(parseLogged(logger, "low_alarm_percent", *form.LowAlarmPercent, current.Tank.LowAlarmPct))
	}
	if form.HighAlarmPercent != nil {
		tank.HighAlarmPct = domain.ClampPercent(parseLogged(logger, "high_alarm_percent", *form.HighAlarmPercent, current.Tank.HighAlarmPct))
	}
	if form.TankShape != nil {
		if shape, ok := domain.ParseTankShape(*form.TankShape); ok {
			tank.Shape = shape
		} else {
			logger.Warn("tank_settings: unknown tank shape, keeping current", zap.String("shape", *form.TankShape), zap.Stringer("current", current.Tank.Shape))
		}
	}

	if form.Calibration != nil {
		points := make([]domain.CalibrationPoint, 0, len(form.Calibration))
		for i, p := range form.Calibration {
			d := parseLogged(logger, "calibration_distance_"+strconv.Itoa(i), p.Distance, 0)
			pct := parseLogged(logger, "calibration_percentage_"+strconv.Itoa(i), p.Percentage, 0)
			points = append(points, domain.CalibrationPoint{
				DistanceCm: ConvertDistance(d, tank.DistanceUnit, domain.DistanceUnitCentimeter),
				Percentage: pct,
			})
		}
		// the store clamps against the sensor range when swapping it in
		next.Calibration = domain.NewCalibrationTable(points, 0)
	}
	return next
}

// ApplyDeviceSettings returns a copy of current with the device name and
// transmission interval applied and clamped.
func ApplyDeviceSettings(current domain.DeviceConfig, form DeviceSettingsForm, logger *zap.Logger) domain.DeviceConfig {
	next := current
	if form.DeviceName != nil {
		next.DeviceName = domain.NormalizeDeviceName(*form.DeviceName)
	}
	if form.Interval != nil {
		v := parseLogged(logger, "interval", *form.Interval, float64(current.TransmissionIntervalMs))
		v = math.Round(math.Max(0, math.Min(v, math.MaxUint32)))
		next.TransmissionIntervalMs = domain.ClampTransmissionInterval(uint32(v))
	}
	return next
}

func (s *DeviceConfigStore) UpdateTank(ctx context.Context, form TankSettingsForm) (domain.DeviceConfig, error) {
	return s.Update(ctx, func(cfg domain.DeviceConfig) domain.DeviceConfig {
		return ApplyTankSettings(cfg, form, s.logger)
	})
}

func (s *DeviceConfigStore) UpdateDevice(ctx context.Context, form DeviceSettingsForm) (domain.DeviceConfig, error) {
	return s.Update(ctx, func(cfg domain.DeviceConfig) domain.DeviceConfig {
		return ApplyDeviceSettings(cfg, form, s.logger)
	})
}

func parseLogged(logger *zap.Logger, field, text string, def float64) float64 {
	v, status := ParseUserNumber(text, def)
	switch status {
	case ParseDefaulted:
		logger.Warn("tank_settings: invalid number, using default", zap.String("field", field), zap.String("input", text), zap.Float64("default", def))
	case ParsePartial:
		logger.Warn("tank_settings: trailing characters ignored", zap.String("field", field), zap.String("input", text), zap.Float64("value", v))
	}
	return v
}
