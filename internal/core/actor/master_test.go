package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	adactor "github.com/jossmilde/tanklevel2mqtt/internal/adapter/actor"
	"github.com/jossmilde/tanklevel2mqtt/internal/adapter/sensor"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/events"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/service"
	"github.com/jossmilde/tanklevel2mqtt/internal/mqtt"
	"github.com/jossmilde/tanklevel2mqtt/internal/util"
	"github.com/jossmilde/tanklevel2mqtt/internal/util/actorutil"
	"github.com/jossmilde/tanklevel2mqtt/pkg/distance_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryRepository struct {
	mu    sync.Mutex
	saved []domain.DeviceConfig
}

func (r *memoryRepository) Load(_ context.Context) (domain.DeviceConfig, error) {
	return domain.DefaultDeviceConfig(), domain.ErrNotFound
}

func (r *memoryRepository) Save(_ context.Context, cfg domain.DeviceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, cfg)
	return nil
}

func (r *memoryRepository) savedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

type masterFixture struct {
	as        *actor.ActorSystem
	pid       *actor.PID
	store     *service.DeviceConfigStore
	repo      *memoryRepository
	publisher *recordingPublisher
}

func spawnMaster(t *testing.T) masterFixture {
	t.Helper()

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	repo := &memoryRepository{}
	store := service.NewDeviceConfigStore(repo, domain.DefaultDeviceConfig(), cfg.Sensor.MaxDistanceCm, logger)
	reader := distance_modbus.NewSimulatedDistanceReader(cfg.Sensor.SimulatedDistanceCm, cfg.Sensor.MaxDistanceCm)
	cache := sensor.NewLastKnownDistance(cfg.Sensor.SimulatedDistanceCm)
	publisher := &recordingPublisher{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, store, cache, func() actor.Actor {
			return adactor.NewSensorActor(reader, cache, 20*time.Millisecond, 500*time.Millisecond, logger)
		}, func() actor.Actor {
			return publisher
		}, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.Nil(t, err)

	return masterFixture{as: as, pid: pid, store: store, repo: repo, publisher: publisher}
}

func TestMasterActorHealth(t *testing.T) {

	f := spawnMaster(t)
	defer f.as.Shutdown()

	time.Sleep(200 * time.Millisecond)

	res, err := f.as.Root.RequestFuture(f.pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.Nil(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, healthResp.Healthy, "healthy is true")
	assert.Equal(t, domain.ACTOR_ID_MASTER, healthResp.Id)

	// discovery is announced once the publisher reported healthy
	require.Len(t, f.publisher.discoveries(), 1)
	disc := f.publisher.discoveries()[0]
	assert.NotEmpty(t, disc.Sensors)
	assert.Len(t, disc.InputNumbers, 3)
}

func TestMasterActorForwardsQueries(t *testing.T) {

	f := spawnMaster(t)
	defer f.as.Shutdown()

	res, err := f.as.Root.RequestFuture(f.pid, domain.SetSimulatedDistanceRequest{DistanceCm: 500}, 2*time.Second).Result()
	require.Nil(t, err)
	assert.Equal(t, float64(domain.DEFAULT_MAX_DISTANCE_CM), res.(domain.SetSimulatedDistanceResponse).DistanceCm, "capped to the maximum")

	res, err = f.as.Root.RequestFuture(f.pid, domain.SetSimulatedDistanceRequest{DistanceCm: 60}, 2*time.Second).Result()
	require.Nil(t, err)
	assert.Equal(t, 60.0, res.(domain.SetSimulatedDistanceResponse).DistanceCm)

	// wait for the next poll
	time.Sleep(200 * time.Millisecond)

	res, err = f.as.Root.RequestFuture(f.pid, domain.GetDistanceRequest{}, 2*time.Second).Result()
	require.Nil(t, err)
	assert.Equal(t, 60.0, res.(domain.GetDistanceResponse).DistanceCm)

	res, err = f.as.Root.RequestFuture(f.pid, domain.GetLevelRequest{}, 2*time.Second).Result()
	require.Nil(t, err)
	assert.Equal(t, 60.0, res.(domain.GetLevelResponse).Reading.DistanceCm)
	assert.Equal(t, 50.0, res.(domain.GetLevelResponse).Reading.Percent)
}

func TestMasterActorAppliesNumberCommands(t *testing.T) {

	f := spawnMaster(t)
	defer f.as.Shutdown()

	time.Sleep(100 * time.Millisecond)
	numbers := f.publisher.inputNumbers()
	assert.Equal(t, 10.0, numbers[events.INPUT_NUMBER_ID_LOW_ALARM_PERCENT], "initial state is published")

	f.as.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: events.INPUT_NUMBER_ID_LOW_ALARM_PERCENT,
		Command:  "number",
		Payload:  "25",
	}})
	f.as.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: events.INPUT_NUMBER_ID_TRANSMISSION_INTERVAL,
		Command:  "number",
		Payload:  "100000",
	}})
	// unknown numbers are ignored
	f.as.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: "pump",
		Command:  "number",
		Payload:  "1",
	}})

	assert.Eventually(t, func() bool {
		cfg := f.store.Snapshot()
		return cfg.Tank.LowAlarmPct == 25 && cfg.TransmissionIntervalMs == domain.MAX_TRANSMISSION_INTERVAL
	}, 2*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		numbers := f.publisher.inputNumbers()
		return numbers[events.INPUT_NUMBER_ID_LOW_ALARM_PERCENT] == 25 &&
			numbers[events.INPUT_NUMBER_ID_TRANSMISSION_INTERVAL] == domain.MAX_TRANSMISSION_INTERVAL
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, 2, f.repo.savedCount())
	assert.Equal(t, 90.0, f.store.Snapshot().Tank.HighAlarmPct)
}

func TestMasterActorRepublishesDiscoveryOnConfigChange(t *testing.T) {

	f := spawnMaster(t)
	defer f.as.Shutdown()

	require.Eventually(t, func() bool {
		return len(f.publisher.discoveries()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	cfg, err := f.store.UpdateDevice(context.Background(), service.DeviceSettingsForm{DeviceName: strPtr("Rain+tank")})
	require.Nil(t, err)
	f.as.Root.Send(f.pid, domain.ConfigChangedEvent{Config: cfg})

	require.Eventually(t, func() bool {
		return len(f.publisher.discoveries()) == 2
	}, 2*time.Second, 20*time.Millisecond)
	disc := f.publisher.discoveries()[1]
	assert.Equal(t, "Rain tank", disc.InputNumbers[0].Device.Name)
}

func strPtr(s string) *string {
	return &s
}
