package config

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"

	"go.uber.org/zap/zapcore"
)

const (
	PUBLISHER_KIND_MQTT = "mqtt"
	PUBLISHER_KIND_NATS = "nats"

	SENSOR_KIND_MODBUS    = "modbus"
	SENSOR_KIND_SIMULATED = "simulated"

	STORAGE_KIND_FILE  = "file"
	STORAGE_KIND_REDIS = "redis"
)

type Config struct {
	LogLevel  zapcore.Level
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Sensor    SensorConfig    `mapstructure:"sensor"`
	Sampling  SamplingConfig  `mapstructure:"sampling"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Device    DeviceDefaults  `mapstructure:"device"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type PublisherConfig struct {
	Kind string `mapstructure:"kind"`
}

type SensorConfig struct {
	Kind                string       `mapstructure:"kind"`
	MaxDistanceCm       float64      `mapstructure:"max_distance_cm"`
	PollIntervalMillis  uint32       `mapstructure:"poll_interval_millis"`
	SimulatedDistanceCm float64      `mapstructure:"simulated_distance_cm"`
	Modbus              ModbusConfig `mapstructure:"modbus"`
}

type ModbusConfig struct {
	URL           string  `mapstructure:"url"`
	UnitId        uint8   `mapstructure:"unit_id"`
	Register      uint16  `mapstructure:"register"`
	RegisterType  string  `mapstructure:"register_type"`
	ValueFormat   string  `mapstructure:"value_format"`
	Scale         float64 `mapstructure:"scale"`
	TimeoutMillis uint32  `mapstructure:"timeout_millis"`
}

type SamplingConfig struct {
	TickMillis uint32 `mapstructure:"tick_millis"`
}

type StorageConfig struct {
	Kind                      string      `mapstructure:"kind"`
	Path                      string      `mapstructure:"path"`
	Redis                     RedisConfig `mapstructure:"redis"`
	CheckpointIntervalSeconds uint32      `mapstructure:"checkpoint_interval_seconds"`
	TimeoutMillis             uint32      `mapstructure:"timeout_millis"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DeviceDefaults is the configuration used when nothing has been persisted yet.
type DeviceDefaults struct {
	Name                       string                    `mapstructure:"name"`
	TransmissionIntervalMillis uint32                    `mapstructure:"transmission_interval_millis"`
	TankHeightCm               float64                   `mapstructure:"tank_height_cm"`
	TankVolumeLiters           float64                   `mapstructure:"tank_volume_liters"`
	SensorOffsetCm             float64                   `mapstructure:"sensor_offset_cm"`
	LowAlarmPercent            float64                   `mapstructure:"low_alarm_percent"`
	HighAlarmPercent           float64                   `mapstructure:"high_alarm_percent"`
	TankShape                  string                    `mapstructure:"tank_shape"`
	DistanceUnit               string                    `mapstructure:"distance_unit"`
	VolumeUnit                 string                    `mapstructure:"volume_unit"`
	Calibration                []domain.CalibrationPoint `mapstructure:"calibration"`
}

func (d DeviceDefaults) DeviceConfig(maxDistanceCm float64) (domain.DeviceConfig, error) {
	shape, ok := domain.ParseTankShape(d.TankShape)
	if !ok {
		return domain.DeviceConfig{}, errors.New("invalid device.tank_shape")
	}
	cfg := domain.DeviceConfig{
		Tank: domain.TankConfig{
			HeightCm:       d.TankHeightCm,
			VolumeLiters:   d.TankVolumeLiters,
			SensorOffsetCm: d.SensorOffsetCm,
			LowAlarmPct:    d.LowAlarmPercent,
			HighAlarmPct:   d.HighAlarmPercent,
			Shape:          shape,
			DistanceUnit:   domain.DistanceUnit(d.DistanceUnit),
			VolumeUnit:     domain.VolumeUnit(d.VolumeUnit),
		},
		Calibration:            domain.NewCalibrationTable(d.Calibration, maxDistanceCm),
		DeviceName:             d.Name,
		TransmissionIntervalMs: d.TransmissionIntervalMillis,
	}
	return cfg.Normalize(), nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// CheckNATSSubject validates a dot separated NATS subject prefix.
func CheckNATSSubject(subject string) (string, error) {
	lower := strings.ToLower(subject)
	if !regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`).MatchString(lower) {
		return "", errors.New("invalid subject. can only contain letters, numbers, underscores and dots")
	}
	return lower, nil
}
