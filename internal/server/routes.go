package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type errorView struct {
	Error string `json:"error"`
}

type levelView struct {
	Reading       domain.LevelReading `json:"reading"`
	LastPublished *time.Time          `json:"last_published,omitempty"`
	PublishFailed bool                `json:"publish_failed"`
}

type calibrationPointView struct {
	Distance   float64 `json:"distance"`
	Percentage float64 `json:"percentage"`
}

// displayView holds the configuration expressed in the configured units.
type displayView struct {
	DistanceUnit     domain.DistanceUnit    `json:"distance_unit"`
	VolumeUnit       domain.VolumeUnit      `json:"volume_unit"`
	TankHeight       float64                `json:"tank_height"`
	SensorOffset     float64                `json:"sensor_offset"`
	TankVolume       float64                `json:"tank_volume"`
	LowAlarmVolume   float64                `json:"low_alarm_volume"`
	HighAlarmVolume  float64                `json:"high_alarm_volume"`
	LowAlarmLiters   float64                `json:"low_alarm_liters"`
	HighAlarmLiters  float64                `json:"high_alarm_liters"`
	CalibrationTable []calibrationPointView `json:"calibration"`
}

type configView struct {
	DeviceName             string                  `json:"device_name"`
	TransmissionIntervalMs uint32                  `json:"transmission_interval_ms"`
	Tank                   domain.TankConfig       `json:"tank"`
	Calibration            domain.CalibrationTable `json:"calibration"`
	Display                displayView             `json:"display"`
}

type appliedView struct {
	Config configView `json:"config"`
	Error  string     `json:"error,omitempty"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/level", s.LevelHandler)
	api.GET("/config", s.ConfigHandler)
	api.POST("/tank", s.TankSettingsHandler)
	api.POST("/config", s.DeviceSettingsHandler)
	api.POST("/sensor/simulated", s.SimulatedDistanceHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) LevelHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetLevelRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorView{Error: err.Error()})
	}
	resp, ok := res.(domain.GetLevelResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorView{Error: "unexpected response"})
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusServiceUnavailable, errorView{Error: resp.GetResponseError().Error()})
	}
	view := levelView{
		Reading:       resp.Reading,
		PublishFailed: resp.PublishFailed,
	}
	if !resp.LastPublished.IsZero() {
		view.LastPublished = &resp.LastPublished
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) ConfigHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, newConfigView(s.store.Snapshot()))
}

func (s *Server) TankSettingsHandler(c echo.Context) error {
	values, err := requestValues(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorView{Error: err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.requestTimeout)
	defer cancel()
	cfg, err := s.store.UpdateTank(ctx, service.TankSettingsFormFromValues(values))
	return s.applied(c, cfg, err)
}

func (s *Server) DeviceSettingsHandler(c echo.Context) error {
	values, err := requestValues(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorView{Error: err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.requestTimeout)
	defer cancel()
	cfg, err := s.store.UpdateDevice(ctx, service.DeviceSettingsFormFromValues(values))
	return s.applied(c, cfg, err)
}

func (s *Server) SimulatedDistanceHandler(c echo.Context) error {
	if !s.simulated {
		return c.JSON(http.StatusConflict, errorView{Error: "sensor is not simulated"})
	}
	values, err := requestValues(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorView{Error: err.Error()})
	}
	distance, status := service.ParseUserNumber(values.Get("distance_cm"), math.NaN())
	if status == service.ParseDefaulted {
		return c.JSON(http.StatusBadRequest, errorView{Error: "invalid distance_cm"})
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SetSimulatedDistanceRequest{DistanceCm: distance}, s.requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorView{Error: err.Error()})
	}
	resp, ok := res.(domain.SetSimulatedDistanceResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorView{Error: "unexpected response"})
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusConflict, errorView{Error: resp.GetResponseError().Error()})
	}
	return c.JSON(http.StatusOK, map[string]float64{"distance_cm": resp.DistanceCm})
}

// applied notifies the master and answers with the configuration now in
// effect. It is in effect even when it could not be persisted.
func (s *Server) applied(c echo.Context, cfg domain.DeviceConfig, err error) error {
	s.rootContext.Send(s.masterActor, domain.ConfigChangedEvent{Config: cfg})
	if err != nil {
		s.logger.Error("http: config applied but not persisted", zap.Error(err))
		status := http.StatusInternalServerError
		if !errors.Is(err, domain.ErrStorageFailure) {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, appliedView{Config: newConfigView(cfg), Error: err.Error()})
	}
	return c.JSON(http.StatusOK, appliedView{Config: newConfigView(cfg)})
}

func newConfigView(cfg domain.DeviceConfig) configView {
	tank := cfg.Tank
	th := service.Thresholds(tank)
	display := displayView{
		DistanceUnit:    tank.DistanceUnit,
		VolumeUnit:      tank.VolumeUnit,
		TankHeight:      service.ConvertDistance(tank.HeightCm, domain.DistanceUnitCentimeter, tank.DistanceUnit),
		SensorOffset:    service.ConvertDistance(tank.SensorOffsetCm, domain.DistanceUnitCentimeter, tank.DistanceUnit),
		TankVolume:      service.ConvertVolume(tank.VolumeLiters, domain.VolumeUnitLiter, tank.VolumeUnit),
		LowAlarmVolume:  service.ConvertVolume(th.LowLiters, domain.VolumeUnitLiter, tank.VolumeUnit),
		HighAlarmVolume: service.ConvertVolume(th.HighLiters, domain.VolumeUnitLiter, tank.VolumeUnit),
		LowAlarmLiters:  th.LowLiters,
		HighAlarmLiters: th.HighLiters,
	}
	for _, p := range cfg.Calibration.Points() {
		display.CalibrationTable = append(display.CalibrationTable, calibrationPointView{
			Distance:   service.ConvertDistance(p.DistanceCm, domain.DistanceUnitCentimeter, tank.DistanceUnit),
			Percentage: p.Percentage,
		})
	}
	return configView{
		DeviceName:             cfg.DeviceName,
		TransmissionIntervalMs: cfg.TransmissionIntervalMs,
		Tank:                   tank,
		Calibration:            cfg.Calibration,
		Display:                display,
	}
}

// requestValues reads url encoded or multipart forms as they are, and flattens
// a JSON object into the same field names. A "calibration" array of
// {distance, percentage} objects becomes calibration_distance_N and
// calibration_percentage_N.
func requestValues(c echo.Context) (url.Values, error) {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ctype, echo.MIMEApplicationJSON) {
		return c.FormParams()
	}
	var body map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return nil, err
	}
	values := url.Values{}
	for key, v := range body {
		if key == "calibration" {
			points, ok := v.([]any)
			if !ok {
				return nil, errors.New("calibration must be an array")
			}
			values.Set("num_calibration_points", strconv.Itoa(len(points)))
			for i, p := range points {
				point, ok := p.(map[string]any)
				if !ok {
					continue
				}
				if d, ok := scalarText(point["distance"]); ok {
					values.Set("calibration_distance_"+strconv.Itoa(i), d)
				}
				if pct, ok := scalarText(point["percentage"]); ok {
					values.Set("calibration_percentage_"+strconv.Itoa(i), pct)
				}
			}
			continue
		}
		if text, ok := scalarText(v); ok {
			values.Set(key, text)
		}
	}
	return values, nil
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
