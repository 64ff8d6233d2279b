package actor

import (
	"fmt"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/port"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/service"
	"github.com/jossmilde/tanklevel2mqtt/internal/metrics"
	. "github.com/jossmilde/tanklevel2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	LEVEL_PUBLISH_TIMEOUT = 5 * time.Second
)

// ConfigSnapshotter is implemented by service.DeviceConfigStore.
type ConfigSnapshotter interface {
	Snapshot() domain.DeviceConfig
}

// LevelActor owns the sampling loop. It ticks every tickInterval, and when
// the transmission interval elapsed it estimates the level, updates the
// alarm channels and hands the reading to the publisher.
type LevelActor struct {
	scheduler    *scheduler.TimerScheduler
	tickInterval time.Duration

	store     ConfigSnapshotter
	source    port.DistanceSource
	publisher *actor.PID

	clock      func() uint32
	tx         service.TransmissionScheduler
	alarms     *service.AlarmEvaluator
	publishing bool
	// edges of readings skipped while a publish was in flight
	pending domain.AlarmTransition

	lastReading   domain.LevelReading
	lastPublished time.Time
	publishFailed bool

	logger *zap.Logger
}

type levelTick struct {
}

func NewLevelActor(store ConfigSnapshotter, source port.DistanceSource, publisher *actor.PID, tickInterval time.Duration, logger *zap.Logger) *LevelActor {
	start := time.Now()
	return &LevelActor{
		store:        store,
		source:       source,
		publisher:    publisher,
		tickInterval: tickInterval,
		clock: func() uint32 {
			// truncation wraps the counter like a firmware millis()
			return uint32(time.Since(start).Milliseconds())
		},
		alarms: service.NewAlarmEvaluator(),
		logger: ActorLogger(domain.ACTOR_ID_LEVEL, logger),
	}
}

func (state *LevelActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("level@default started", zap.Duration("tick", state.tickInterval))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.scheduler.RequestOnce(state.tickInterval, ctx.Self(), levelTick{})
	case levelTick:
		cfg := state.store.Snapshot()
		if state.tx.Tick(state.clock(), cfg.TransmissionIntervalMs) {
			state.sample(ctx, &cfg)
		}
		// schedule next tick
		state.scheduler.RequestOnce(state.tickInterval, ctx.Self(), levelTick{})
	case domain.PublishLevelResponse:
		state.publishing = false
		state.publishFailed = msg.HasResponseError()
		if msg.HasResponseError() {
			state.logger.Warn("level@default publish failed", zap.Error(msg.GetResponseError()))
		} else {
			state.lastPublished = time.Now()
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("level@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_LEVEL,
			Healthy: true,
			State:   "sampling",
		})
	case domain.GetLevelRequest:
		cfg := state.store.Snapshot()
		ForRequest(msg).Respond(ctx, domain.GetLevelResponse{
			Reading:       service.Reading(state.source.Read(), &cfg, state.alarms.State()),
			LastPublished: state.lastPublished,
			PublishFailed: state.publishFailed,
		})
	default:
		state.logger.Debug("level@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *LevelActor) sample(ctx actor.Context, cfg *domain.DeviceConfig) {
	reading := service.Reading(state.source.Read(), cfg, domain.AlarmState{})
	transition := state.alarms.Update(reading.VolumeLiters, service.Thresholds(cfg.Tank))
	reading.Alarms = state.alarms.State()
	state.lastReading = reading

	state.record(reading, transition)

	transition = state.pending.Then(transition)
	if state.publishing {
		// the previous publish has not completed, skip this interval
		state.logger.Warn("level@default publisher busy, skipping reading")
		state.pending = transition
		return
	}
	state.pending = domain.AlarmTransition{}
	state.publishing = true
	req := domain.PublishLevelRequest{
		DeviceName: cfg.DeviceName,
		Reading:    reading,
		Transition: transition,
	}
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.publisher, req, LEVEL_PUBLISH_TIMEOUT), func(err error) any {
		return domain.PublishLevelResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *LevelActor) record(reading domain.LevelReading, transition domain.AlarmTransition) {
	metrics.LevelPercent.Set(reading.Percent)
	metrics.VolumeLiters.Set(reading.VolumeLiters)
	metrics.AlarmActive.WithLabelValues("low").Set(metrics.BoolGauge(reading.Alarms.LowActive))
	metrics.AlarmActive.WithLabelValues("high").Set(metrics.BoolGauge(reading.Alarms.HighActive))
	if transition.Low != domain.AlarmEdgeNone {
		metrics.AlarmTransitions.WithLabelValues("low", transition.Low.String()).Inc()
		state.logger.Info("level@default low alarm", zap.Stringer("edge", transition.Low), zap.Float64("volume_liters", reading.VolumeLiters))
	}
	if transition.High != domain.AlarmEdgeNone {
		metrics.AlarmTransitions.WithLabelValues("high", transition.High.String()).Inc()
		state.logger.Info("level@default high alarm", zap.Stringer("edge", transition.High), zap.Float64("volume_liters", reading.VolumeLiters))
	}
	state.logger.Sugar().Debugf("level@default %.1f cm => %.1f%% %.2f L", reading.DistanceCm, reading.Percent, reading.VolumeLiters)
}
