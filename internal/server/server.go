package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/config"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/service"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

// ConfigService is the configuration store seen by the HTTP handlers.
type ConfigService interface {
	Snapshot() domain.DeviceConfig
	UpdateTank(ctx context.Context, form service.TankSettingsForm) (domain.DeviceConfig, error)
	UpdateDevice(ctx context.Context, form service.DeviceSettingsForm) (domain.DeviceConfig, error)
}

type Server struct {
	port           uint
	httpLog        bool
	simulated      bool
	requestTimeout time.Duration
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	store          ConfigService
	logger         *zap.Logger
}

func New(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, store ConfigService, logger *zap.Logger) *Server {
	return &Server{
		port:           cfg.Port,
		httpLog:        cfg.HttpLog,
		simulated:      cfg.Sensor.Kind == config.SENSOR_KIND_SIMULATED,
		requestTimeout: 10 * time.Second,
		rootContext:    rootContext,
		masterActor:    masterActor,
		store:          store,
		logger:         logger.With(zap.String("component", "http")),
	}
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, store ConfigService, logger *zap.Logger) *http.Server {
	s := New(cfg, rootContext, masterActor, store, logger)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
