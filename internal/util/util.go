package util

import (
	"github.com/jossmilde/tanklevel2mqtt/internal/config"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "tanklevel",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		NATS: config.NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "tanklevel",
		},
		Publisher: config.PublisherConfig{
			Kind: config.PUBLISHER_KIND_MQTT,
		},
		Sensor: config.SensorConfig{
			Kind:                config.SENSOR_KIND_SIMULATED,
			MaxDistanceCm:       domain.DEFAULT_MAX_DISTANCE_CM,
			PollIntervalMillis:  50,
			SimulatedDistanceCm: 100,
			Modbus: config.ModbusConfig{
				URL:           "tcp://-.-.-.-:502",
				UnitId:        1,
				RegisterType:  "holding",
				Scale:         0.1,
				TimeoutMillis: 500,
			},
		},
		Sampling: config.SamplingConfig{
			TickMillis: 10,
		},
		Storage: config.StorageConfig{
			Kind:                      config.STORAGE_KIND_FILE,
			CheckpointIntervalSeconds: 60,
			TimeoutMillis:             1000,
		},
		Port: 8080,
	}
}
