package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/port"

	"go.uber.org/zap"
)

// DeviceConfigStore owns the shared DeviceConfig. Readers get a full copy,
// writers replace the whole value. Persistence runs after the swap and never
// holds the read/write lock.
type DeviceConfigStore struct {
	mu      sync.RWMutex
	current domain.DeviceConfig
	// bumped on every swap
	version uint64

	saveMu        sync.Mutex
	dirty         atomic.Bool
	repo          port.ConfigRepository
	maxDistanceCm float64
	logger        *zap.Logger
}

func NewDeviceConfigStore(repo port.ConfigRepository, defaults domain.DeviceConfig, maxDistanceCm float64, logger *zap.Logger) *DeviceConfigStore {
	s := &DeviceConfigStore{
		repo:          repo,
		maxDistanceCm: maxDistanceCm,
		logger:        logger.With(zap.String("component", "config_store")),
	}
	s.current = s.normalize(defaults)
	return s
}

// Load replaces the current configuration with the persisted one. On error
// the current configuration is kept.
func (s *DeviceConfigStore) Load(ctx context.Context) error {
	cfg, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn("config_store: could not load persisted config, using defaults", zap.Error(err))
		return err
	}
	cfg = s.normalize(cfg)
	s.mu.Lock()
	s.current = cfg
	s.version++
	s.mu.Unlock()
	s.logger.Info("config_store: loaded persisted config", zap.String("device", cfg.DeviceName), zap.Stringer("shape", cfg.Tank.Shape))
	return nil
}

func (s *DeviceConfigStore) Snapshot() domain.DeviceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in cfg and persists it. The returned config is the one now in
// effect. A persistence error does not revert the swap.
func (s *DeviceConfigStore) Replace(ctx context.Context, cfg domain.DeviceConfig) (domain.DeviceConfig, error) {
	cfg = s.normalize(cfg)
	s.mu.Lock()
	s.current = cfg
	s.version++
	s.mu.Unlock()
	s.dirty.Store(true)
	return cfg, s.persist(ctx)
}

// Update applies fn to a copy of the current configuration and swaps the
// result in. fn runs without holding the lock and is run again if another
// writer swapped in between, so no update is lost.
func (s *DeviceConfigStore) Update(ctx context.Context, fn func(cfg domain.DeviceConfig) domain.DeviceConfig) (domain.DeviceConfig, error) {
	for {
		s.mu.RLock()
		base, version := s.current, s.version
		s.mu.RUnlock()

		cfg := s.normalize(fn(base))

		s.mu.Lock()
		if s.version != version {
			s.mu.Unlock()
			continue
		}
		s.current = cfg
		s.version++
		s.mu.Unlock()
		s.dirty.Store(true)
		return cfg, s.persist(ctx)
	}
}

// Flush persists the current configuration if a previous save failed.
func (s *DeviceConfigStore) Flush(ctx context.Context) error {
	if !s.dirty.Load() {
		return nil
	}
	return s.persist(ctx)
}

func (s *DeviceConfigStore) Dirty() bool {
	return s.dirty.Load()
}

func (s *DeviceConfigStore) MaxDistanceCm() float64 {
	return s.maxDistanceCm
}

func (s *DeviceConfigStore) persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	// the newest value is saved, so a slow earlier writer cannot overwrite it
	s.dirty.Store(false)
	cfg := s.Snapshot()
	if err := s.repo.Save(ctx, cfg); err != nil {
		s.dirty.Store(true)
		s.logger.Error("config_store: save failed, keeping in-memory config", zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	s.logger.Debug("config_store: config saved")
	return nil
}

func (s *DeviceConfigStore) normalize(cfg domain.DeviceConfig) domain.DeviceConfig {
	cfg = cfg.Normalize()
	cfg.Calibration = domain.NewCalibrationTable(cfg.Calibration.Points(), s.maxDistanceCm)
	return cfg
}
