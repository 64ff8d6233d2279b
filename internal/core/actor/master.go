package actor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/jossmilde/tanklevel2mqtt/internal/adapter/actor"
	"github.com/jossmilde/tanklevel2mqtt/internal/config"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/events"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/port"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/service"
	. "github.com/jossmilde/tanklevel2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	SETTINGS_UPDATE_TIMEOUT = 5 * time.Second
)

type SensorActorProvider func() actor.Actor

type PublisherActorProvider func() actor.Actor

// SettingsStore is the part of service.DeviceConfigStore the master needs.
type SettingsStore interface {
	ConfigSnapshotter
	UpdateTank(ctx context.Context, form service.TankSettingsForm) (domain.DeviceConfig, error)
	UpdateDevice(ctx context.Context, form service.DeviceSettingsForm) (domain.DeviceConfig, error)
}

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	store  SettingsStore
	source port.DistanceSource

	currentHealthCheck     healthCheckResult
	sensorActor            *actor.PID
	publisherActor         *actor.PID
	levelActor             *actor.PID
	haDiscoveryActor       *actor.PID
	sensorActorProvider    SensorActorProvider
	publisherActorProvider PublisherActorProvider
	logger                 *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

type settingsApplied struct {
	config domain.DeviceConfig
	err    error
}

func NewMasterOfPuppetsActor(config config.Config, store SettingsStore, source port.DistanceSource, sensorActorProvider SensorActorProvider, publisherActorProvider PublisherActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                 config,
		store:                  store,
		source:                 source,
		behavior:               actor.NewBehavior(),
		stash:                  &Stash{},
		logger:                 ActorLogger(domain.ACTOR_ID_MASTER, logger),
		sensorActorProvider:    sensorActorProvider,
		publisherActorProvider: publisherActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start sensor child
		sensorActorPID, err := state.startSensorActor(ctx)
		if err != nil {
			panic(err)
		}
		state.sensorActor = sensorActorPID

		// start publisher child
		publisherActorPID, err := state.startPublisherActor(ctx)
		if err != nil {
			panic(err)
		}
		state.publisherActor = publisherActorPID

		// start level child
		levelActorPID, err := state.startLevelActor(ctx)
		if err != nil {
			panic(err)
		}
		state.levelActor = levelActorPID

		// start HA Discovery
		if state.config.Publisher.Kind == config.PUBLISHER_KIND_MQTT && state.config.MQTT.HADiscoveryEnable {
			haDiscPID, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
			state.haDiscoveryActor = haDiscPID
		}

		// expose the current thresholds to command subscribers
		state.publishConfigState(ctx, state.store.Snapshot())

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ForRequest(msg).ReplyTo(ctx)
		for id, pid := range state.healthCheckTargets() {
			id := id // per-iteration copy (go directive is 1.21)
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetLevelRequest:
		ctx.Forward(state.levelActor)
	case domain.GetDistanceRequest, domain.SetSimulatedDistanceRequest:
		ctx.Forward(state.sensorActor)
	case adactor.ParsedCommand:
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command == nil {
			return
		}
		cmd, err := ParsedMQTTCommandToSettings(*msg.Command)
		if err != nil {
			state.logger.Warn("master@default ignoring command", zap.Error(err))
			return
		}
		state.applySettings(ctx, cmd)
	case settingsApplied:
		if msg.err != nil {
			// the new values are in effect even if they could not be saved
			state.logger.Error("master@default settings not persisted", zap.Error(msg.err))
		}
		state.configChanged(ctx, msg.config)
	case domain.ConfigChangedEvent:
		state.logger.Debug("master@default ConfigChangedEvent")
		state.configChanged(ctx, msg.Config)
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", ctx.Self().Id, domain.ACTOR_ID_SENSOR) {
			state.logger.Error("master@default sensor terminated")
			panic(errors.New("sensor terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy), zap.String("state", msg.State))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) healthCheckTargets() map[string]*actor.PID {
	return map[string]*actor.PID{
		domain.ACTOR_ID_SENSOR:    state.sensorActor,
		domain.ACTOR_ID_PUBLISHER: state.publisherActor,
		domain.ACTOR_ID_LEVEL:     state.levelActor,
	}
}

func (state *MasterOfPuppetsActor) applySettings(ctx actor.Context, cmd *SettingsCommand) {
	store := state.store
	NewBackgroundTask(ctx, func() (*settingsApplied, error) {
		c, cancel := context.WithTimeout(context.Background(), SETTINGS_UPDATE_TIMEOUT)
		defer cancel()
		var cfg domain.DeviceConfig
		var err error
		if cmd.Tank != nil {
			cfg, err = store.UpdateTank(c, *cmd.Tank)
		} else {
			cfg, err = store.UpdateDevice(c, *cmd.Device)
		}
		return &settingsApplied{config: cfg, err: err}, nil
	}).WithTimeout(SETTINGS_UPDATE_TIMEOUT).Recover(func(err error) settingsApplied {
		return settingsApplied{config: store.Snapshot(), err: err}
	}).PipeTo(ctx.Self())
}

func (state *MasterOfPuppetsActor) configChanged(ctx actor.Context, cfg domain.DeviceConfig) {
	state.logger.Info("master@default config changed",
		zap.String("device", cfg.DeviceName),
		zap.Float64("low_alarm_pct", cfg.Tank.LowAlarmPct),
		zap.Float64("high_alarm_pct", cfg.Tank.HighAlarmPct),
		zap.Uint32("interval_ms", cfg.TransmissionIntervalMs))
	state.publishConfigState(ctx, cfg)
	if state.haDiscoveryActor != nil {
		ctx.Send(state.haDiscoveryActor, domain.ConfigChangedEvent{Config: cfg})
	}
}

func (state *MasterOfPuppetsActor) publishConfigState(ctx actor.Context, cfg domain.DeviceConfig) {
	for _, e := range events.ConfigInputNumberUpdateEvents(cfg) {
		if event, ok := e.(domain.SensorUpdateEvent); ok {
			ctx.Send(state.publisherActor, domain.PublishSensorUpdateRequest{
				Retain: true,
				Event:  event,
			})
		}
	}
}

func (state *MasterOfPuppetsActor) startSensorActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	sensorProps := actor.PropsFromProducer(func() actor.Actor {
		return state.sensorActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(sensorProps, domain.ACTOR_ID_SENSOR)
}

func (state *MasterOfPuppetsActor) startPublisherActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	publisherProps := actor.PropsFromProducer(func() actor.Actor {
		return state.publisherActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(publisherProps, domain.ACTOR_ID_PUBLISHER)
}

func (state *MasterOfPuppetsActor) startLevelActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	tick := time.Duration(state.config.Sampling.TickMillis) * time.Millisecond
	levelProps := actor.PropsFromProducer(func() actor.Actor {
		return NewLevelActor(state.store, state.source, state.publisherActor, tick, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(levelProps, domain.ACTOR_ID_LEVEL)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(state.config.MQTT.BaseTopic, state.store, state.publisherActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *healthCheckResult) reset() {
	state.healthy = map[string]bool{}
	state.checksReceived = 0
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.healthy[domain.ACTOR_ID_SENSOR] && state.healthy[domain.ACTOR_ID_PUBLISHER] && state.healthy[domain.ACTOR_ID_LEVEL]
}

func (state *healthCheckResult) unhealthy() string {
	for _, id := range []string{domain.ACTOR_ID_SENSOR, domain.ACTOR_ID_PUBLISHER, domain.ACTOR_ID_LEVEL} {
		if !state.healthy[id] {
			return id
		}
	}
	return ""
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   "ok",
	}
	if !resp.Healthy {
		resp.State = fmt.Sprintf("%s unhealthy", state.unhealthy())
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
