package checkpoint

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFlusher struct {
	dirty   atomic.Bool
	flushes atomic.Int32
	failFor int32
}

func (f *fakeFlusher) Dirty() bool {
	return f.dirty.Load()
}

func (f *fakeFlusher) Flush(_ context.Context) error {
	n := f.flushes.Add(1)
	if n <= f.failFor {
		return errors.New("still offline")
	}
	f.dirty.Store(false)
	return nil
}

func TestCheckpointRetriesUntilPersisted(t *testing.T) {
	flusher := &fakeFlusher{failFor: 1}
	flusher.dirty.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := Start(ctx, flusher, 30*time.Millisecond, time.Second, zap.Must(zap.NewDevelopment()))
	require.Nil(t, err)
	defer sched.Stop()

	assert.Eventually(t, func() bool {
		return !flusher.Dirty()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), flusher.flushes.Load())

	// nothing pending, nothing flushed
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(2), flusher.flushes.Load())
}
