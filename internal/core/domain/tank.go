package domain

import (
	"strings"
	"unicode/utf8"
)

type TankShape int

const (
	TankShapeRectangular TankShape = iota
	TankShapeCylinderVertical
	TankShapeCylinderHorizontal
	TankShapeCustom
)

const (
	TANK_SHAPE_NAME_RECTANGULAR         = "rectangular"
	TANK_SHAPE_NAME_CYLINDER_VERTICAL   = "cylindrical standing"
	TANK_SHAPE_NAME_CYLINDER_HORIZONTAL = "cylindrical laying flat"
	TANK_SHAPE_NAME_CUSTOM              = "custom"
)

func (s TankShape) String() string {
	switch s {
	case TankShapeRectangular:
		return TANK_SHAPE_NAME_RECTANGULAR
	case TankShapeCylinderVertical:
		return TANK_SHAPE_NAME_CYLINDER_VERTICAL
	case TankShapeCylinderHorizontal:
		return TANK_SHAPE_NAME_CYLINDER_HORIZONTAL
	case TankShapeCustom:
		return TANK_SHAPE_NAME_CUSTOM
	}
	return "unknown"
}

// ParseTankShape accepts the persisted shape names. Underscores are accepted
// in place of spaces so the names can be used in MQTT payloads and JSON.
func ParseTankShape(name string) (TankShape, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", " ") {
	case TANK_SHAPE_NAME_RECTANGULAR:
		return TankShapeRectangular, true
	case TANK_SHAPE_NAME_CYLINDER_VERTICAL:
		return TankShapeCylinderVertical, true
	case TANK_SHAPE_NAME_CYLINDER_HORIZONTAL:
		return TankShapeCylinderHorizontal, true
	case TANK_SHAPE_NAME_CUSTOM:
		return TankShapeCustom, true
	}
	return TankShapeRectangular, false
}

func (s TankShape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TankShape) UnmarshalText(text []byte) error {
	shape, ok := ParseTankShape(string(text))
	if !ok {
		return ErrUnknownTankShape
	}
	*s = shape
	return nil
}

type DistanceUnit string

const (
	DistanceUnitMillimeter DistanceUnit = "mm"
	DistanceUnitCentimeter DistanceUnit = "cm"
	DistanceUnitMeter      DistanceUnit = "m"
	DistanceUnitInch       DistanceUnit = "inches"
	DistanceUnitFoot       DistanceUnit = "ft"
)

type VolumeUnit string

const (
	VolumeUnitLiter          VolumeUnit = "liter"
	VolumeUnitCubicMeter     VolumeUnit = "m³"
	VolumeUnitGallon         VolumeUnit = "gallon"
	VolumeUnitImperialGallon VolumeUnit = "imperial gallon"
)

type TankConfig struct {
	HeightCm       float64      `json:"height_cm"`
	VolumeLiters   float64      `json:"volume_liters"`
	SensorOffsetCm float64      `json:"sensor_offset_cm"`
	LowAlarmPct    float64      `json:"low_alarm_percent"`
	HighAlarmPct   float64      `json:"high_alarm_percent"`
	Shape          TankShape    `json:"shape"`
	DistanceUnit   DistanceUnit `json:"distance_unit"`
	VolumeUnit     VolumeUnit   `json:"volume_unit"`
}

const (
	MAX_DEVICE_NAME_LENGTH     = 31
	MIN_TRANSMISSION_INTERVAL  = 500
	MAX_TRANSMISSION_INTERVAL  = 10000
	DEFAULT_DEVICE_NAME        = "Ultrasonic Level Sensor"
	DEFAULT_TX_INTERVAL_MILLIS = 1000
	DEFAULT_MAX_DISTANCE_CM    = 120
)

type DeviceConfig struct {
	Tank                   TankConfig       `json:"tank"`
	Calibration            CalibrationTable `json:"calibration"`
	DeviceName             string           `json:"device_name"`
	TransmissionIntervalMs uint32           `json:"transmission_interval_ms"`
}

func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Tank: TankConfig{
			HeightCm:       DEFAULT_MAX_DISTANCE_CM,
			VolumeLiters:   100,
			SensorOffsetCm: 0,
			LowAlarmPct:    10,
			HighAlarmPct:   90,
			Shape:          TankShapeRectangular,
			DistanceUnit:   DistanceUnitCentimeter,
			VolumeUnit:     VolumeUnitLiter,
		},
		Calibration: NewCalibrationTable([]CalibrationPoint{
			{DistanceCm: 20, Percentage: 100},
			{DistanceCm: DEFAULT_MAX_DISTANCE_CM, Percentage: 0},
		}, DEFAULT_MAX_DISTANCE_CM),
		DeviceName:             DEFAULT_DEVICE_NAME,
		TransmissionIntervalMs: DEFAULT_TX_INTERVAL_MILLIS,
	}
}

// Normalize enforces the write-side bounds of a configuration.
func (c DeviceConfig) Normalize() DeviceConfig {
	c.Tank.LowAlarmPct = ClampPercent(c.Tank.LowAlarmPct)
	c.Tank.HighAlarmPct = ClampPercent(c.Tank.HighAlarmPct)
	c.DeviceName = NormalizeDeviceName(c.DeviceName)
	c.TransmissionIntervalMs = ClampTransmissionInterval(c.TransmissionIntervalMs)
	return c
}

func NormalizeDeviceName(name string) string {
	name = strings.ReplaceAll(name, "+", " ")
	return TruncateUTF8(name, MAX_DEVICE_NAME_LENGTH)
}

// TruncateUTF8 cuts s to at most n bytes without splitting a character.
func TruncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func ClampTransmissionInterval(millis uint32) uint32 {
	if millis < MIN_TRANSMISSION_INTERVAL {
		return MIN_TRANSMISSION_INTERVAL
	}
	if millis > MAX_TRANSMISSION_INTERVAL {
		return MAX_TRANSMISSION_INTERVAL
	}
	return millis
}

func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

type AlarmState struct {
	LowActive  bool `json:"low_active"`
	HighActive bool `json:"high_active"`
}

type AlarmEdge int

const (
	AlarmEdgeNone AlarmEdge = iota
	AlarmEdgeRaised
	AlarmEdgeCleared
)

func (e AlarmEdge) String() string {
	switch e {
	case AlarmEdgeRaised:
		return "raised"
	case AlarmEdgeCleared:
		return "cleared"
	}
	return "none"
}

type AlarmTransition struct {
	Low  AlarmEdge
	High AlarmEdge
}

func (t AlarmTransition) Any() bool {
	return t.Low != AlarmEdgeNone || t.High != AlarmEdgeNone
}

// Then folds a later transition into t. Edges of one channel alternate, so
// two edges on the same channel cancel out.
func (t AlarmTransition) Then(next AlarmTransition) AlarmTransition {
	return AlarmTransition{Low: foldEdge(t.Low, next.Low), High: foldEdge(t.High, next.High)}
}

func foldEdge(a, b AlarmEdge) AlarmEdge {
	switch {
	case a == AlarmEdgeNone:
		return b
	case b == AlarmEdgeNone:
		return a
	}
	return AlarmEdgeNone
}

type LevelReading struct {
	DistanceCm    float64    `json:"distance_cm"`
	Percent       float64    `json:"percent"`
	VolumeLiters  float64    `json:"volume_liters"`
	VolumeDisplay float64    `json:"volume_display"`
	VolumeUnit    VolumeUnit `json:"volume_unit"`
	Alarms        AlarmState `json:"alarms"`
}
