package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/adapter/sensor"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedConfig struct {
	mu  sync.Mutex
	cfg domain.DeviceConfig
}

func (f *fixedConfig) Snapshot() domain.DeviceConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// recordingPublisher answers every publish request and keeps a copy of it.
type recordingPublisher struct {
	mu        sync.Mutex
	requests  []domain.PublishLevelRequest
	updates   []domain.SensorUpdateEvent
	discovery []domain.PublishDiscoveryRequest
	fail      error
	// delay holds the answer to the first level publish
	delay time.Duration
}

func (p *recordingPublisher) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_PUBLISHER, Healthy: true})
	case domain.PublishLevelRequest:
		p.mu.Lock()
		p.requests = append(p.requests, msg)
		err := p.fail
		delay := p.delay
		if len(p.requests) == 1 {
			p.delay = 0
		} else {
			delay = 0
		}
		p.mu.Unlock()
		time.Sleep(delay)
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishLevelResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
	case domain.PublishSensorUpdateRequest:
		p.mu.Lock()
		p.updates = append(p.updates, msg.Event)
		p.mu.Unlock()
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishSensorUpdateResponse{})
		}
	case domain.PublishDiscoveryRequest:
		p.mu.Lock()
		p.discovery = append(p.discovery, msg)
		p.mu.Unlock()
		if ctx.Sender() != nil {
			ctx.Respond(domain.PublishDiscoveryResponse{})
		}
	}
}

func (p *recordingPublisher) published() []domain.PublishLevelRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PublishLevelRequest(nil), p.requests...)
}

func (p *recordingPublisher) inputNumbers() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	values := map[string]float64{}
	for _, u := range p.updates {
		if n, ok := u.(domain.InputNumberSensorUpdateEvent); ok {
			values[n.SensorId()] = n.Value
		}
	}
	return values
}

func (p *recordingPublisher) discoveries() []domain.PublishDiscoveryRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PublishDiscoveryRequest(nil), p.discovery...)
}

func spawnLevelActor(t *testing.T, cfg domain.DeviceConfig, distance float64, publisher *recordingPublisher) (*actor.ActorSystem, *actor.PID) {
	as, pid, _ := spawnLevelActorWithSource(t, cfg, distance, publisher)
	return as, pid
}

func spawnLevelActorWithSource(t *testing.T, cfg domain.DeviceConfig, distance float64, publisher *recordingPublisher) (*actor.ActorSystem, *actor.PID, *sensor.LastKnownDistance) {
	t.Helper()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)

	pubPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return publisher
	}))
	store := &fixedConfig{cfg: cfg}
	source := sensor.NewLastKnownDistance(distance)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewLevelActor(store, source, pubPID, 10*time.Millisecond, logger)
	}))
	return as, pid, source
}

func TestLevelActorPublishesOnInterval(t *testing.T) {

	cfg := domain.DefaultDeviceConfig()
	cfg.TransmissionIntervalMs = domain.MIN_TRANSMISSION_INTERVAL

	publisher := &recordingPublisher{}
	as, pid := spawnLevelActor(t, cfg, 70, publisher)
	defer as.Shutdown()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, publisher.published(), "nothing before the first interval")

	time.Sleep(1200 * time.Millisecond)
	reqs := publisher.published()
	require.GreaterOrEqual(t, len(reqs), 1)
	assert.LessOrEqual(t, len(reqs), 3)
	assert.Equal(t, domain.DEFAULT_DEVICE_NAME, reqs[0].DeviceName)
	assert.Equal(t, 70.0, reqs[0].Reading.DistanceCm)

	res, err := as.Root.RequestFuture(pid, domain.GetLevelRequest{}, time.Second).Result()
	require.Nil(t, err)
	level := res.(domain.GetLevelResponse)
	assert.Equal(t, 70.0, level.Reading.DistanceCm)
	assert.False(t, level.LastPublished.IsZero())
	assert.False(t, level.PublishFailed)
}

func TestLevelActorCarriesAlarmTransition(t *testing.T) {

	cfg := domain.DefaultDeviceConfig()
	cfg.TransmissionIntervalMs = domain.MIN_TRANSMISSION_INTERVAL

	publisher := &recordingPublisher{}
	// close to the bottom, far below the 10% low alarm
	as, pid := spawnLevelActor(t, cfg, 115, publisher)
	defer as.Shutdown()

	time.Sleep(1200 * time.Millisecond)
	reqs := publisher.published()
	require.GreaterOrEqual(t, len(reqs), 2)

	assert.Equal(t, domain.AlarmEdgeRaised, reqs[0].Transition.Low)
	assert.Equal(t, domain.AlarmEdgeNone, reqs[0].Transition.High)
	assert.True(t, reqs[0].Reading.Alarms.LowActive)
	assert.Less(t, reqs[0].Reading.Percent, 10.0)

	// the edge is reported once
	assert.Equal(t, domain.AlarmEdgeNone, reqs[1].Transition.Low)
	assert.True(t, reqs[1].Reading.Alarms.LowActive)

	res, err := as.Root.RequestFuture(pid, domain.GetLevelRequest{}, time.Second).Result()
	require.Nil(t, err)
	assert.True(t, res.(domain.GetLevelResponse).Reading.Alarms.LowActive)
}

func TestLevelActorKeepsEdgesWhilePublisherBusy(t *testing.T) {

	cfg := domain.DefaultDeviceConfig()
	cfg.TransmissionIntervalMs = domain.MIN_TRANSMISSION_INTERVAL

	// the first publish completes after the second sample was taken
	publisher := &recordingPublisher{delay: 700 * time.Millisecond}
	as, _, source := spawnLevelActorWithSource(t, cfg, 50, publisher)
	defer as.Shutdown()

	time.Sleep(700 * time.Millisecond)
	source.Store(115, time.Now())

	require.Eventually(t, func() bool {
		return len(publisher.published()) >= 2
	}, 3*time.Second, 20*time.Millisecond)
	reqs := publisher.published()

	assert.Equal(t, domain.AlarmEdgeNone, reqs[0].Transition.Low)
	assert.False(t, reqs[0].Reading.Alarms.LowActive)
	assert.Equal(t, domain.AlarmEdgeRaised, reqs[1].Transition.Low, "edge of the skipped reading is published")
	assert.True(t, reqs[1].Reading.Alarms.LowActive)
}

func TestLevelActorReportsPublishFailure(t *testing.T) {

	cfg := domain.DefaultDeviceConfig()
	cfg.TransmissionIntervalMs = domain.MIN_TRANSMISSION_INTERVAL

	publisher := &recordingPublisher{fail: domain.ErrStorageFailure}
	as, pid := spawnLevelActor(t, cfg, 50, publisher)
	defer as.Shutdown()

	time.Sleep(700 * time.Millisecond)

	res, err := as.Root.RequestFuture(pid, domain.GetLevelRequest{}, time.Second).Result()
	require.Nil(t, err)
	level := res.(domain.GetLevelResponse)
	assert.True(t, level.PublishFailed)
	assert.True(t, level.LastPublished.IsZero())
}

func TestLevelActorHealth(t *testing.T) {

	publisher := &recordingPublisher{}
	as, pid := spawnLevelActor(t, domain.DefaultDeviceConfig(), 50, publisher)
	defer as.Shutdown()

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.Nil(t, err)
	health := res.(domain.ActorHealthResponse)
	assert.True(t, health.Healthy)
	assert.Equal(t, domain.ACTOR_ID_LEVEL, health.Id)
}
