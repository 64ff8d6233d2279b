package port

import (
	"context"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
)

// DistanceSource returns the last known raw distance in centimeters.
// Implementations must not block.
type DistanceSource interface {
	Read() float64
}

// ConfigRepository persists the device configuration. Load returns the
// defaults together with the error when nothing usable is stored.
type ConfigRepository interface {
	Load(ctx context.Context) (domain.DeviceConfig, error)
	Save(ctx context.Context, cfg domain.DeviceConfig) error
}

// KeyValueStore is the raw persistence primitive. Get returns
// domain.ErrNotFound for missing keys. Put writes all entries or none.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, entries map[string][]byte) error
	Close() error
}
