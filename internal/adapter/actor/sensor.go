package actor

import (
	"fmt"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/adapter/sensor"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/metrics"
	"github.com/jossmilde/tanklevel2mqtt/internal/util/actorutil"
	"github.com/jossmilde/tanklevel2mqtt/pkg/distance_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	SENSOR_MAX_CONSECUTIVE_FAILURES = 3
)

// SensorActor polls the distance reader and keeps the last good value in a
// LastKnownDistance cache. Reads run as background tasks so requests are
// answered from the cache while a read is in flight.
type SensorActor struct {
	behavior     actor.Behavior
	stash        *actorutil.Stash
	scheduler    *scheduler.TimerScheduler
	reader       distance_modbus.DistanceReader
	cache        *sensor.LastKnownDistance
	pollInterval time.Duration
	readTimeout  time.Duration
	failures     uint
	logger       *zap.Logger
}

type sensorPollTick struct {
}

type sensorReadResult struct {
	distanceCm float64
	err        error
	duration   time.Duration
}

type simulatedSetter interface {
	Set(distanceCm float64) float64
}

func NewSensorActor(reader distance_modbus.DistanceReader, cache *sensor.LastKnownDistance, pollInterval, readTimeout time.Duration, logger *zap.Logger) *SensorActor {
	act := &SensorActor{
		reader:       reader,
		cache:        cache,
		pollInterval: pollInterval,
		readTimeout:  readTimeout,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_SENSOR, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *SensorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SensorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("sensor@starting started")
		if err := state.reader.Open(); err != nil {
			// let the supervisor restart us
			panic(fmt.Errorf("%w: %w", domain.ErrSensorUnavailable, err))
		}
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		ctx.Send(ctx.Self(), sensorPollTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.reader.Close()
	default:
		state.logger.Debug("sensor@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *SensorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case sensorPollTick:
		state.startRead(ctx)
		state.behavior.BecomeStacked(state.WaitingRead)
	case *actor.Stopping:
		state.reader.Close()
	case *actor.Restarting:
		state.reader.Close()
	default:
		state.handleQuery(ctx, msg)
	}
}

// WaitingRead answers queries from the cache while a read is running.
func (state *SensorActor) WaitingRead(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case sensorReadResult:
		state.applyRead(msg)
		state.behavior.UnbecomeStacked()
		state.scheduler.RequestOnce(state.pollInterval, ctx.Self(), sensorPollTick{})
		state.stash.UnstashAll(ctx)
	case sensorPollTick:
		// a read is already in flight
	case *actor.Stopping:
		state.reader.Close()
	case *actor.Restarting:
		state.reader.Close()
	default:
		state.handleQuery(ctx, msg)
	}
}

func (state *SensorActor) handleQuery(ctx actor.Context, msg any) {
	switch msg := msg.(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("sensor@default: ActorHealthRequest")
		healthy := state.failures < SENSOR_MAX_CONSECUTIVE_FAILURES
		st := "reading"
		if !healthy {
			st = "failing"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SENSOR,
			Healthy: healthy,
			State:   st,
		})
	case domain.GetDistanceRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.GetDistanceResponse{
			DistanceCm: state.cache.Read(),
			ReadAt:     state.cache.ReadAt(),
		})
	case domain.SetSimulatedDistanceRequest:
		setter, ok := state.reader.(simulatedSetter)
		if !ok {
			actorutil.ForRequest(msg).Respond(ctx, domain.SetSimulatedDistanceResponse{
				ActorResponseMixIn: domain.ErrorResponse(fmt.Errorf("%w: sensor is not simulated", domain.ErrSensorUnavailable)),
			})
			return
		}
		applied := setter.Set(msg.DistanceCm)
		state.cache.Store(applied, time.Now())
		state.logger.Info("sensor@default simulated distance set", zap.Float64("distance_cm", applied))
		actorutil.ForRequest(msg).Respond(ctx, domain.SetSimulatedDistanceResponse{DistanceCm: applied})
	default:
		state.logger.Debug("sensor@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SensorActor) startRead(ctx actor.Context) {
	reader := state.reader
	actorutil.NewBackgroundTask(ctx, func() (*sensorReadResult, error) {
		start := time.Now()
		d, err := reader.ReadDistanceCm()
		return &sensorReadResult{distanceCm: d, err: err, duration: time.Since(start)}, nil
	}).WithTimeout(state.readTimeout).Recover(func(err error) sensorReadResult {
		return sensorReadResult{err: err, duration: state.readTimeout}
	}).PipeTo(ctx.Self())
}

func (state *SensorActor) applyRead(res sensorReadResult) {
	metrics.SensorReads.WithLabelValues(metrics.Status(res.err)).Inc()
	if res.err != nil {
		state.failures++
		state.logger.Warn("sensor@waiting read failed, keeping last known distance",
			zap.Error(res.err), zap.Uint("failures", state.failures), zap.Float64("last_cm", state.cache.Read()))
		return
	}
	state.failures = 0
	state.cache.Store(res.distanceCm, time.Now())
	metrics.DistanceCm.Set(res.distanceCm)
	state.logger.Sugar().Debugf("sensor@waiting read %.1f cm in %d ms", res.distanceCm, res.duration.Milliseconds())
}
