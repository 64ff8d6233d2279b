package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/port"
	"github.com/jossmilde/tanklevel2mqtt/internal/metrics"

	"go.uber.org/zap"
)

const (
	KEY_SETTINGS               = "n2k_config/settings"
	KEY_CALIBRATION_NUM_POINTS = "calibration/num_points"
	KEY_CALIBRATION_POINTS     = "calibration/points"
)

// BlobConfigRepository stores the device configuration as fixed binary
// records in a key/value store.
type BlobConfigRepository struct {
	store         port.KeyValueStore
	backend       string
	defaults      domain.DeviceConfig
	maxDistanceCm float64
	logger        *zap.Logger
}

func NewBlobConfigRepository(store port.KeyValueStore, backend string, defaults domain.DeviceConfig, maxDistanceCm float64, logger *zap.Logger) *BlobConfigRepository {
	return &BlobConfigRepository{
		store:         store,
		backend:       backend,
		defaults:      defaults,
		maxDistanceCm: maxDistanceCm,
		logger:        logger.With(zap.String("component", "storage"), zap.String("backend", backend)),
	}
}

// Load returns the defaults and an error when the settings record is missing
// or malformed. A missing or malformed calibration table falls back to the
// default table without failing the load.
func (r *BlobConfigRepository) Load(ctx context.Context) (domain.DeviceConfig, error) {
	data, err := r.store.Get(ctx, KEY_SETTINGS)
	metrics.StorageOperations.WithLabelValues(r.backend, "load", metrics.Status(ignoreNotFound(err))).Inc()
	if err != nil {
		return r.defaults, err
	}
	cfg, err := DecodeSettings(data)
	if err != nil {
		return r.defaults, err
	}
	cfg.Calibration = r.loadCalibration(ctx)
	return cfg, nil
}

func (r *BlobConfigRepository) loadCalibration(ctx context.Context) domain.CalibrationTable {
	count, err := r.store.Get(ctx, KEY_CALIBRATION_NUM_POINTS)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("storage: could not read calibration point count", zap.Error(err))
		}
		return r.defaults.Calibration
	}
	blob, err := r.store.Get(ctx, KEY_CALIBRATION_POINTS)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("storage: could not read calibration points", zap.Error(err))
		return r.defaults.Calibration
	}
	table, err := DecodeCalibration(count, blob, r.maxDistanceCm)
	if err != nil {
		r.logger.Warn("storage: calibration malformed, using defaults", zap.Error(err))
		return r.defaults.Calibration
	}
	r.logger.Debug("storage: calibration loaded", zap.Int("points", table.Len()))
	return table
}

func (r *BlobConfigRepository) Save(ctx context.Context, cfg domain.DeviceConfig) error {
	settings, err := EncodeSettings(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	count, blob := EncodeCalibration(cfg.Calibration)
	err = r.store.Put(ctx, map[string][]byte{
		KEY_SETTINGS:               settings,
		KEY_CALIBRATION_NUM_POINTS: {count},
		KEY_CALIBRATION_POINTS:     blob,
	})
	metrics.StorageOperations.WithLabelValues(r.backend, "save", metrics.Status(err)).Inc()
	return err
}

func ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// ensure interface compliance
var _ port.ConfigRepository = (*BlobConfigRepository)(nil)
