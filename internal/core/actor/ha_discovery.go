package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/events"
	"github.com/jossmilde/tanklevel2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the bridge and tank entities once the publisher
// is healthy, and again whenever the configuration changes.
type HADiscoveryActor struct {
	baseTopic string
	store     ConfigSnapshotter
	behavior  actor.Behavior
	stash     *actorutil.Stash
	publisher *actor.PID

	logger *zap.Logger
}

func NewHADiscoveryActor(baseTopic string, store ConfigSnapshotter, publisher *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		baseTopic: baseTopic,
		store:     store,
		publisher: publisher,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.publisher, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_PUBLISHER,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("publisher actor is not healthy"))
		}
		state.publish(ctx)
		state.behavior.Become(state.DoneReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) DoneReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ConfigChangedEvent:
		// the device name is part of the discovery payload
		state.logger.Debug("hadiscovery@done ConfigChangedEvent", zap.String("device", msg.Config.DeviceName))
		state.publish(ctx)
	default:
		state.logger.Debug("hadiscovery@done: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) publish(ctx actor.Context) {
	cfg := state.store.Snapshot()
	ctx.Send(state.publisher, DiscoveryRequest(state.baseTopic, cfg))
}

// DiscoveryRequest lists every entity exposed for cfg.
func DiscoveryRequest(baseTopic string, cfg domain.DeviceConfig) domain.PublishDiscoveryRequest {
	bridgeDevice := events.BridgeDevice(baseTopic)
	tankDevice := events.TankDevice(baseTopic, cfg.DeviceName, bridgeDevice)

	var sensors []domain.GenericSensor
	sensors = append(sensors, events.BridgeSensors(bridgeDevice)...)
	sensors = append(sensors, events.TankSensors(tankDevice, cfg.Tank.VolumeUnit)...)

	return domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		InputNumbers: events.TankInputNumbers(tankDevice, cfg),
	}
}
