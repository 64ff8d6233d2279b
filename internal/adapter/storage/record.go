package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
)

// Settings record layout, little endian:
//
//	device name     [32]byte  NUL terminated
//	tank height     float32   cm
//	tank volume     float32   liters
//	sensor offset   float32   cm
//	low alarm       float32   percent
//	high alarm      float32   percent
//	tank shape      [32]byte  NUL terminated name
//	distance unit   [8]byte   NUL terminated
//	volume unit     [16]byte  NUL terminated
//	interval        uint32    milliseconds
const (
	nameFieldSize     = 32
	shapeFieldSize    = 32
	distUnitFieldSize = 8
	volUnitFieldSize  = 16

	SettingsRecordSize = nameFieldSize + 5*4 + shapeFieldSize + distUnitFieldSize + volUnitFieldSize + 4
)

type settingsRecord struct {
	DeviceName       [nameFieldSize]byte
	TankHeight       float32
	TankVolume       float32
	SensorOffset     float32
	LowAlarmPercent  float32
	HighAlarmPercent float32
	TankShape        [shapeFieldSize]byte
	DistanceUnit     [distUnitFieldSize]byte
	VolumeUnit       [volUnitFieldSize]byte
	IntervalMillis   uint32
}

func EncodeSettings(cfg domain.DeviceConfig) ([]byte, error) {
	rec := settingsRecord{
		TankHeight:       float32(cfg.Tank.HeightCm),
		TankVolume:       float32(cfg.Tank.VolumeLiters),
		SensorOffset:     float32(cfg.Tank.SensorOffsetCm),
		LowAlarmPercent:  float32(cfg.Tank.LowAlarmPct),
		HighAlarmPercent: float32(cfg.Tank.HighAlarmPct),
		IntervalMillis:   cfg.TransmissionIntervalMs,
	}
	putString(rec.DeviceName[:], cfg.DeviceName)
	putString(rec.TankShape[:], cfg.Tank.Shape.String())
	putString(rec.DistanceUnit[:], string(cfg.Tank.DistanceUnit))
	putString(rec.VolumeUnit[:], string(cfg.Tank.VolumeUnit))
	buf := bytes.NewBuffer(make([]byte, 0, SettingsRecordSize))
	if err := binary.Write(buf, binary.LittleEndian, &rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSettings fills every DeviceConfig field except the calibration table.
func DecodeSettings(data []byte) (domain.DeviceConfig, error) {
	var cfg domain.DeviceConfig
	if len(data) != SettingsRecordSize {
		return cfg, fmt.Errorf("%w: settings record is %d bytes, want %d", domain.ErrRecordMalformed, len(data), SettingsRecordSize)
	}
	var rec settingsRecord
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &rec); err != nil {
		return cfg, fmt.Errorf("%w: %w", domain.ErrRecordMalformed, err)
	}
	shapeName := getString(rec.TankShape[:])
	shape, ok := domain.ParseTankShape(shapeName)
	if !ok {
		return cfg, fmt.Errorf("%w: unknown tank shape %q", domain.ErrRecordMalformed, shapeName)
	}
	for _, f := range []float32{rec.TankHeight, rec.TankVolume, rec.SensorOffset, rec.LowAlarmPercent, rec.HighAlarmPercent} {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return cfg, fmt.Errorf("%w: non finite number", domain.ErrRecordMalformed)
		}
	}
	cfg.DeviceName = getString(rec.DeviceName[:])
	cfg.TransmissionIntervalMs = rec.IntervalMillis
	cfg.Tank = domain.TankConfig{
		HeightCm:       float64(rec.TankHeight),
		VolumeLiters:   float64(rec.TankVolume),
		SensorOffsetCm: float64(rec.SensorOffset),
		LowAlarmPct:    float64(rec.LowAlarmPercent),
		HighAlarmPct:   float64(rec.HighAlarmPercent),
		Shape:          shape,
		DistanceUnit:   domain.DistanceUnit(getString(rec.DistanceUnit[:])),
		VolumeUnit:     domain.VolumeUnit(getString(rec.VolumeUnit[:])),
	}
	return cfg, nil
}

// EncodeCalibration returns the point count byte and the interleaved
// distance/percentage float32 blob.
func EncodeCalibration(table domain.CalibrationTable) (byte, []byte) {
	points := table.Points()
	blob := make([]byte, 0, len(points)*8)
	for _, p := range points {
		blob = binary.LittleEndian.AppendUint32(blob, math.Float32bits(float32(p.DistanceCm)))
		blob = binary.LittleEndian.AppendUint32(blob, math.Float32bits(float32(p.Percentage)))
	}
	return byte(len(points)), blob
}

func DecodeCalibration(count []byte, blob []byte, maxDistanceCm float64) (domain.CalibrationTable, error) {
	if len(count) != 1 {
		return domain.CalibrationTable{}, fmt.Errorf("%w: calibration count is %d bytes", domain.ErrRecordMalformed, len(count))
	}
	n := int(count[0])
	if n > domain.MAX_CALIBRATION_POINTS {
		return domain.CalibrationTable{}, fmt.Errorf("%w: %d calibration points", domain.ErrRecordMalformed, n)
	}
	if len(blob) != n*8 {
		return domain.CalibrationTable{}, fmt.Errorf("%w: calibration blob is %d bytes, want %d", domain.ErrRecordMalformed, len(blob), n*8)
	}
	points := make([]domain.CalibrationPoint, n)
	for i := range points {
		d := math.Float32frombits(binary.LittleEndian.Uint32(blob[i*8:]))
		p := math.Float32frombits(binary.LittleEndian.Uint32(blob[i*8+4:]))
		points[i] = domain.CalibrationPoint{DistanceCm: float64(d), Percentage: float64(p)}
	}
	return domain.NewCalibrationTable(points, maxDistanceCm), nil
}

// putString copies s truncated so that a NUL terminator always fits.
func putString(dst []byte, s string) {
	copy(dst, domain.TruncateUTF8(s, len(dst)-1))
}

func getString(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}
	return string(src)
}
