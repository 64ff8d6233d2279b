package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/jossmilde/tanklevel2mqtt/internal/adapter/actor"
	"github.com/jossmilde/tanklevel2mqtt/internal/adapter/bus"
	"github.com/jossmilde/tanklevel2mqtt/internal/adapter/sensor"
	"github.com/jossmilde/tanklevel2mqtt/internal/adapter/storage"
	"github.com/jossmilde/tanklevel2mqtt/internal/checkpoint"
	"github.com/jossmilde/tanklevel2mqtt/internal/config"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/actor"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/port"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/service"
	"github.com/jossmilde/tanklevel2mqtt/internal/metrics"
	"github.com/jossmilde/tanklevel2mqtt/internal/server"
	"github.com/jossmilde/tanklevel2mqtt/internal/util/actorutil"
	"github.com/jossmilde/tanklevel2mqtt/pkg/distance_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// built-in device defaults
	defaults, err := cfg.Device.DeviceConfig(cfg.Sensor.MaxDistanceCm)
	if err != nil {
		logger.Error("invalid device defaults", zap.Error(err))
		return
	}

	// config storage
	kv, err := keyValueStore(cfg)
	if err != nil {
		logger.Error("could not open config storage", zap.String("kind", cfg.Storage.Kind), zap.Error(err))
		return
	}
	defer kv.Close()

	storageTimeout := time.Duration(cfg.Storage.TimeoutMillis) * time.Millisecond
	repo := storage.NewBlobConfigRepository(kv, cfg.Storage.Kind, defaults, cfg.Sensor.MaxDistanceCm, logger)
	store := service.NewDeviceConfigStore(repo, defaults, cfg.Sensor.MaxDistanceCm, logger)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), storageTimeout)
	// a failed load keeps the defaults
	_ = store.Load(loadCtx)
	cancelLoad()

	// retry failed saves in the background
	checkpointCtx, cancelCheckpoint := context.WithCancel(context.Background())
	defer cancelCheckpoint()
	checkpointInterval := time.Duration(cfg.Storage.CheckpointIntervalSeconds) * time.Second
	sched, err := checkpoint.Start(checkpointCtx, store, checkpointInterval, storageTimeout, logger)
	if err != nil {
		logger.Error("could not start checkpoint job", zap.Error(err))
		return
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	// init sensor actor provider
	sensorProv, cache, err := sensorActorProvider(cfg, logger)
	if err != nil {
		logger.Error("could not create distance sensor", zap.Error(err))
		return
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, store, cache, sensorProv, publisherActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, store, logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()

	sched.Stop()
	// last chance for a pending save
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), storageTimeout)
	defer cancelFlush()
	if err := store.Flush(flushCtx); err != nil {
		logger.Error("config not persisted on shutdown", zap.Error(err))
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => TANKLEVEL_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("TANKLEVEL_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("tanklevel")
	// TANKLEVEL_MQTT_HOST => mqtt.host
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := checkConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func checkConfig(cfg *config.Config) error {
	switch cfg.Publisher.Kind {
	case config.PUBLISHER_KIND_MQTT:
		// check and fix base topic
		baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic

		// check and fix homeassistant discovery topic
		hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.HADiscoveryTopic = hadBaseTopic
	case config.PUBLISHER_KIND_NATS:
		subject, err := config.CheckNATSSubject(cfg.NATS.Subject)
		if err != nil {
			return err
		}
		cfg.NATS.Subject = subject
	default:
		return fmt.Errorf("config param publisher.kind must be %q or %q", config.PUBLISHER_KIND_MQTT, config.PUBLISHER_KIND_NATS)
	}

	// check bounds
	if cfg.Sensor.MaxDistanceCm <= 0 {
		return errors.New("config param sensor.max_distance_cm should be > 0")
	}
	if cfg.Sensor.PollIntervalMillis < 100 {
		return errors.New("config param sensor.poll_interval_millis should be >= 100")
	}
	if cfg.Sampling.TickMillis == 0 || cfg.Sampling.TickMillis > domain.MIN_TRANSMISSION_INTERVAL {
		return fmt.Errorf("config param sampling.tick_millis should be in 1..%d", domain.MIN_TRANSMISSION_INTERVAL)
	}
	if cfg.Storage.CheckpointIntervalSeconds == 0 {
		return errors.New("config param storage.checkpoint_interval_seconds should be > 0")
	}
	switch cfg.Sensor.Kind {
	case config.SENSOR_KIND_MODBUS, config.SENSOR_KIND_SIMULATED:
	default:
		return fmt.Errorf("config param sensor.kind must be %q or %q", config.SENSOR_KIND_MODBUS, config.SENSOR_KIND_SIMULATED)
	}
	switch cfg.Storage.Kind {
	case config.STORAGE_KIND_FILE, config.STORAGE_KIND_REDIS:
	default:
		return fmt.Errorf("config param storage.kind must be %q or %q", config.STORAGE_KIND_FILE, config.STORAGE_KIND_REDIS)
	}
	return nil
}

func keyValueStore(cfg *config.Config) (port.KeyValueStore, error) {
	if cfg.Storage.Kind == config.STORAGE_KIND_REDIS {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Storage.TimeoutMillis)*time.Millisecond)
		defer cancel()
		store, err := storage.NewRedisStore(ctx, cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storage.NewFileStore(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func sensorActorProvider(cfg *config.Config, logger *zap.Logger) (actor.SensorActorProvider, *sensor.LastKnownDistance, error) {

	var reader distance_modbus.DistanceReader
	// until the first successful read the tank is reported empty
	initial := cfg.Sensor.MaxDistanceCm

	switch cfg.Sensor.Kind {
	case config.SENSOR_KIND_SIMULATED:
		sim := distance_modbus.NewSimulatedDistanceReader(cfg.Sensor.SimulatedDistanceCm, cfg.Sensor.MaxDistanceCm)
		initial, _ = sim.ReadDistanceCm()
		reader = sim
	default:
		mb := cfg.Sensor.Modbus
		r, err := distance_modbus.CreateDistanceModbusReader(mb.URL, mb.UnitId, mb.Register, mb.RegisterType, mb.ValueFormat, mb.Scale,
			time.Duration(mb.TimeoutMillis)*time.Millisecond, logger, &distance_modbus.ModbusInstrument{RecordTime: metrics.ObserveModbus})
		if err != nil {
			return nil, nil, err
		}
		reader = r
	}

	cache := sensor.NewLastKnownDistance(initial)
	pollInterval := time.Duration(cfg.Sensor.PollIntervalMillis) * time.Millisecond
	readTimeout := time.Duration(cfg.Sensor.Modbus.TimeoutMillis) * time.Millisecond * 2

	return func() pactor.Actor {
		return adactor.NewSensorActor(reader, cache, pollInterval, readTimeout, logger)
	}, cache, nil
}

func publisherActorProvider(cfg *config.Config, logger *zap.Logger) actor.PublisherActorProvider {
	if cfg.Publisher.Kind == config.PUBLISHER_KIND_NATS {
		return func() pactor.Actor {
			return adactor.NewNATSActor(cfg.NATS.Subject, func() (adactor.JSONPublisher, error) {
				publisher, err := bus.NewPublisher(cfg.NATS.URL, "tanklevel2mqtt", 10*time.Second)
				if err != nil {
					return nil, err
				}
				return publisher, nil
			}, logger)
		}
	}
	return func() pactor.Actor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("publisher.kind", config.PUBLISHER_KIND_MQTT)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "tanklevel")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("nats.url", "nats://127.0.0.1:4222")
	viper.SetDefault("nats.subject", "tanklevel")
	viper.SetDefault("sensor.kind", config.SENSOR_KIND_SIMULATED)
	viper.SetDefault("sensor.max_distance_cm", domain.DEFAULT_MAX_DISTANCE_CM)
	viper.SetDefault("sensor.poll_interval_millis", 500)
	viper.SetDefault("sensor.simulated_distance_cm", 100)
	viper.SetDefault("sensor.modbus.unit_id", 1)
	viper.SetDefault("sensor.modbus.register_type", distance_modbus.REGISTER_TYPE_HOLDING)
	viper.SetDefault("sensor.modbus.value_format", distance_modbus.VALUE_FORMAT_UINT16)
	viper.SetDefault("sensor.modbus.scale", 1)
	viper.SetDefault("sensor.modbus.timeout_millis", 1000)
	viper.SetDefault("sampling.tick_millis", 50)
	viper.SetDefault("storage.kind", config.STORAGE_KIND_FILE)
	viper.SetDefault("storage.path", "./data")
	viper.SetDefault("storage.redis.addr", "127.0.0.1:6379")
	viper.SetDefault("storage.redis.key_prefix", "tanklevel:")
	viper.SetDefault("storage.checkpoint_interval_seconds", 60)
	viper.SetDefault("storage.timeout_millis", 2000)
	viper.SetDefault("device.name", domain.DEFAULT_DEVICE_NAME)
	viper.SetDefault("device.transmission_interval_millis", domain.DEFAULT_TX_INTERVAL_MILLIS)
	viper.SetDefault("device.tank_height_cm", domain.DEFAULT_MAX_DISTANCE_CM)
	viper.SetDefault("device.tank_volume_liters", 100)
	viper.SetDefault("device.sensor_offset_cm", 0)
	viper.SetDefault("device.low_alarm_percent", 10)
	viper.SetDefault("device.high_alarm_percent", 90)
	viper.SetDefault("device.tank_shape", domain.TANK_SHAPE_NAME_RECTANGULAR)
	viper.SetDefault("device.distance_unit", string(domain.DistanceUnitCentimeter))
	viper.SetDefault("device.volume_unit", string(domain.VolumeUnitLiter))
	viper.SetDefault("device.calibration", []map[string]float64{
		{"distance_cm": 20, "percentage": 100},
		{"distance_cm": domain.DEFAULT_MAX_DISTANCE_CM, "percentage": 0},
	})
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Storage.Redis.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
