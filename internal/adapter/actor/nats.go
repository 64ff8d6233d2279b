package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/events"
	"github.com/jossmilde/tanklevel2mqtt/internal/metrics"
	"github.com/jossmilde/tanklevel2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// JSONPublisher is implemented by bus.Publisher.
type JSONPublisher interface {
	Publish(subject string, payload any) error
	IsConnected() bool
	Close()
}

// NATSActor publishes level readings as JSON on <subject>.level and alarm
// edges on <subject>.alarm.
type NATSActor struct {
	subject   string
	connect   func() (JSONPublisher, error)
	publisher JSONPublisher
	logger    *zap.Logger
}

type LevelMessage struct {
	Device        string  `json:"device"`
	DistanceCm    float64 `json:"distance_cm"`
	Percent       float64 `json:"percent"`
	VolumeLiters  float64 `json:"volume_liters"`
	VolumeDisplay float64 `json:"volume_display"`
	VolumeUnit    string  `json:"volume_unit"`
	LowAlarm      bool    `json:"low_alarm"`
	HighAlarm     bool    `json:"high_alarm"`
	Timestamp     int64   `json:"timestamp"`
}

type AlarmMessage struct {
	Sensor       string  `json:"sensor"`
	Edge         string  `json:"edge"`
	VolumeLiters float64 `json:"volume_liters"`
	Timestamp    int64   `json:"timestamp"`
}

func NewNATSActor(subject string, connect func() (JSONPublisher, error), logger *zap.Logger) *NATSActor {
	return &NATSActor{
		subject: subject,
		connect: connect,
		logger:  actorutil.ActorLogger("nats", logger),
	}
}

func (state *NATSActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("nats@default started")
		pub, err := state.connect()
		if err != nil {
			state.logger.Error("nats@default could not connect", zap.Error(err))
			panic(err)
		}
		state.publisher = pub
	case *actor.Stopping:
		state.close()
	case *actor.Restarting:
		state.close()
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_PUBLISHER,
			Healthy: state.publisher != nil && state.publisher.IsConnected(),
			State:   "idle",
		})
	case domain.PublishLevelRequest:
		err := state.publishLevel(msg)
		metrics.Publishes.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			state.logger.Error("nats@default could not publish level", zap.Error(err))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishLevelResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
	case domain.PublishDiscoveryRequest:
		// no discovery on NATS
		if ctx.Sender() != nil {
			ctx.Respond(domain.PublishDiscoveryResponse{})
		}
	case domain.PublishSensorUpdateRequest:
		if ctx.Sender() != nil {
			ctx.Respond(domain.PublishSensorUpdateResponse{})
		}
	default:
		state.logger.Debug("nats@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *NATSActor) publishLevel(req domain.PublishLevelRequest) error {
	if state.publisher == nil {
		return errors.New("nats: not connected")
	}
	now := time.Now().Unix()
	r := req.Reading
	err := state.publisher.Publish(state.subject+".level", LevelMessage{
		Device:        req.DeviceName,
		DistanceCm:    r.DistanceCm,
		Percent:       r.Percent,
		VolumeLiters:  r.VolumeLiters,
		VolumeDisplay: r.VolumeDisplay,
		VolumeUnit:    string(r.VolumeUnit),
		LowAlarm:      r.Alarms.LowActive,
		HighAlarm:     r.Alarms.HighActive,
		Timestamp:     now,
	})
	if err != nil {
		return err
	}
	var errs []error
	for _, ev := range events.AlarmTransitionEvents(req.Transition, r.VolumeLiters) {
		errs = append(errs, state.publisher.Publish(state.subject+".alarm", AlarmMessage{
			Sensor:       ev.Id,
			Edge:         ev.Edge.String(),
			VolumeLiters: ev.VolumeLiters,
			Timestamp:    now,
		}))
	}
	return errors.Join(errs...)
}

func (state *NATSActor) close() {
	if state.publisher != nil {
		state.publisher.Close()
		state.publisher = nil
	}
}
