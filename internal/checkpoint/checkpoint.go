package checkpoint

import (
	"context"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/metrics"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const JOB_KEY = "config-checkpoint"

// Flusher retries a pending configuration save. service.DeviceConfigStore
// implements it.
type Flusher interface {
	Dirty() bool
	Flush(ctx context.Context) error
}

// Start runs a periodic job that persists the configuration when an earlier
// save failed. Stop the returned scheduler on shutdown.
func Start(ctx context.Context, flusher Flusher, interval, timeout time.Duration, logger *zap.Logger) (quartz.Scheduler, error) {
	logger = logger.With(zap.String("component", "checkpoint"))

	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return nil, err
	}
	sched.Start(ctx)

	flushJob := job.NewFunctionJob(func(ctx context.Context) (bool, error) {
		if !flusher.Dirty() {
			return false, nil
		}
		c, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := flusher.Flush(c)
		metrics.Checkpoints.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			logger.Warn("checkpoint: config still not persisted", zap.Error(err))
			return true, err
		}
		logger.Info("checkpoint: pending config persisted")
		return true, nil
	})

	err = sched.ScheduleJob(quartz.NewJobDetail(flushJob, quartz.NewJobKey(JOB_KEY)), quartz.NewSimpleTrigger(interval))
	if err != nil {
		sched.Stop()
		return nil, err
	}
	return sched, nil
}
