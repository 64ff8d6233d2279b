package actorutil

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/events"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/service"
	"github.com/jossmilde/tanklevel2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// SettingsCommand is a configuration change requested over MQTT. Exactly
// one of Tank or Device is set.
type SettingsCommand struct {
	Tank   *service.TankSettingsForm
	Device *service.DeviceSettingsForm
}

func ParsedMQTTCommandToSettings(cmd mqtt.ParsedMQTTCommand) (*SettingsCommand, error) {
	if cmd.Command != "number" {
		return nil, fmt.Errorf("unsupported command %q", cmd.Command)
	}
	payload := cmd.Payload
	switch cmd.DeviceId {
	case events.INPUT_NUMBER_ID_LOW_ALARM_PERCENT:
		return &SettingsCommand{Tank: &service.TankSettingsForm{LowAlarmPercent: &payload}}, nil
	case events.INPUT_NUMBER_ID_HIGH_ALARM_PERCENT:
		return &SettingsCommand{Tank: &service.TankSettingsForm{HighAlarmPercent: &payload}}, nil
	case events.INPUT_NUMBER_ID_TRANSMISSION_INTERVAL:
		return &SettingsCommand{Device: &service.DeviceSettingsForm{Interval: &payload}}, nil
	}
	return nil, fmt.Errorf("unknown number %q", cmd.DeviceId)
}
