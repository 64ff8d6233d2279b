package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepository(t *testing.T) (*BlobConfigRepository, *FileStore) {
	store, err := NewFileStore(t.TempDir())
	require.Nil(t, err)
	repo := NewBlobConfigRepository(store, "file", domain.DefaultDeviceConfig(), domain.DEFAULT_MAX_DISTANCE_CM, zap.Must(zap.NewDevelopment()))
	return repo, store
}

func TestSaveLoadRoundTrip(t *testing.T) {

	assert := assert.New(t)
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	cfg := domain.DefaultDeviceConfig()
	cfg.DeviceName = "Fresh Water"
	cfg.TransmissionIntervalMs = 2500
	cfg.Tank.Shape = domain.TankShapeCylinderHorizontal
	cfg.Tank.HeightCm = 80
	cfg.Tank.VolumeLiters = 250
	cfg.Tank.SensorOffsetCm = 5
	cfg.Tank.DistanceUnit = domain.DistanceUnitInch
	cfg.Tank.VolumeUnit = domain.VolumeUnitGallon
	cfg.Calibration = domain.NewCalibrationTable([]domain.CalibrationPoint{
		{DistanceCm: 10, Percentage: 100},
		{DistanceCm: 50, Percentage: 40},
		{DistanceCm: 90, Percentage: 0},
	}, domain.DEFAULT_MAX_DISTANCE_CM)

	require.Nil(t, repo.Save(ctx, cfg))

	loaded, err := repo.Load(ctx)
	require.Nil(t, err)
	assert.Equal(cfg.Tank, loaded.Tank)
	assert.Equal(cfg.DeviceName, loaded.DeviceName)
	assert.Equal(cfg.TransmissionIntervalMs, loaded.TransmissionIntervalMs)
	assert.Equal(cfg.Calibration.Points(), loaded.Calibration.Points())
}

func TestLoadMissingReturnsDefaults(t *testing.T) {

	repo, _ := newTestRepository(t)

	cfg, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.DefaultDeviceConfig().Tank, cfg.Tank)
	assert.Equal(t, domain.DEFAULT_DEVICE_NAME, cfg.DeviceName)
}

func TestLoadWrongSizeRecord(t *testing.T) {

	repo, store := newTestRepository(t)
	ctx := context.Background()
	require.Nil(t, store.Put(ctx, map[string][]byte{KEY_SETTINGS: make([]byte, SettingsRecordSize-4)}))

	cfg, err := repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrRecordMalformed)
	assert.Equal(t, domain.DefaultDeviceConfig().Tank, cfg.Tank)
}

func TestLoadUnknownShapeIsMalformed(t *testing.T) {

	repo, store := newTestRepository(t)
	ctx := context.Background()

	data, err := EncodeSettings(domain.DefaultDeviceConfig())
	require.Nil(t, err)
	// overwrite the shape name field
	off := nameFieldSize + 5*4
	copy(data[off:off+shapeFieldSize], append([]byte("hexagonal"), make([]byte, shapeFieldSize-9)...))
	require.Nil(t, store.Put(ctx, map[string][]byte{KEY_SETTINGS: data}))

	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrRecordMalformed)
}

func TestLoadMalformedCalibrationKeepsSettings(t *testing.T) {

	assert := assert.New(t)
	repo, store := newTestRepository(t)
	ctx := context.Background()

	cfg := domain.DefaultDeviceConfig()
	cfg.DeviceName = "Bilge"
	require.Nil(t, repo.Save(ctx, cfg))
	require.Nil(t, store.Put(ctx, map[string][]byte{KEY_CALIBRATION_NUM_POINTS: {3}}))

	loaded, err := repo.Load(ctx)
	require.Nil(t, err)
	assert.Equal("Bilge", loaded.DeviceName)
	assert.Equal(domain.DefaultDeviceConfig().Calibration.Points(), loaded.Calibration.Points())
}

func TestLoadMissingCalibrationUsesDefault(t *testing.T) {

	repo, store := newTestRepository(t)
	ctx := context.Background()

	data, err := EncodeSettings(domain.DefaultDeviceConfig())
	require.Nil(t, err)
	require.Nil(t, store.Put(ctx, map[string][]byte{KEY_SETTINGS: data}))

	loaded, err := repo.Load(ctx)
	require.Nil(t, err)
	assert.Equal(t, domain.DefaultDeviceConfig().Calibration.Points(), loaded.Calibration.Points())
}

func TestEncodeTruncatesLongStrings(t *testing.T) {

	cfg := domain.DefaultDeviceConfig()
	cfg.DeviceName = "a device name that is far too long for the record"
	data, err := EncodeSettings(cfg)
	require.Nil(t, err)
	require.Len(t, data, SettingsRecordSize)

	decoded, err := DecodeSettings(data)
	require.Nil(t, err)
	assert.Equal(t, cfg.DeviceName[:nameFieldSize-1], decoded.DeviceName)
}

func TestEncodeTruncatesOnRuneBoundary(t *testing.T) {

	cfg := domain.DefaultDeviceConfig()
	cfg.DeviceName = "Tankanzeige Wassertank Küche ÄÖÜ"
	data, err := EncodeSettings(cfg)
	require.Nil(t, err)

	decoded, err := DecodeSettings(data)
	require.Nil(t, err)
	assert.True(t, utf8.ValidString(decoded.DeviceName))
	assert.Equal(t, "Tankanzeige Wassertank Küche ", decoded.DeviceName)
}

func TestDecodeCalibrationLimits(t *testing.T) {

	assert := assert.New(t)

	_, err := DecodeCalibration([]byte{9}, make([]byte, 72), domain.DEFAULT_MAX_DISTANCE_CM)
	assert.ErrorIs(err, domain.ErrRecordMalformed)

	_, err = DecodeCalibration([]byte{2}, make([]byte, 8), domain.DEFAULT_MAX_DISTANCE_CM)
	assert.ErrorIs(err, domain.ErrRecordMalformed)

	table, err := DecodeCalibration([]byte{0}, nil, domain.DEFAULT_MAX_DISTANCE_CM)
	assert.Nil(err)
	assert.Equal(0, table.Len())
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {

	root := t.TempDir()
	store, err := NewFileStore(filepath.Join(root, "data"))
	require.Nil(t, err)

	err = store.Put(context.Background(), map[string][]byte{"../outside": {1}})
	assert.NotNil(t, err)
	_, statErr := os.Stat(filepath.Join(root, "outside"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStoreGetMissing(t *testing.T) {

	store, err := NewFileStore(t.TempDir())
	require.Nil(t, err)

	_, err = store.Get(context.Background(), "calibration/points")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
