package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tanklevel"

var (
	// LevelPercent is the last estimated fill level
	LevelPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "level_percent",
			Help:      "Last estimated tank fill level in percent",
		},
	)

	VolumeLiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "volume_liters",
			Help:      "Last estimated tank volume in liters",
		},
	)

	DistanceCm = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distance_cm",
			Help:      "Last raw distance reported by the sensor in centimeters",
		},
	)

	AlarmActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_active",
			Help:      "Alarm channel state (1 active, 0 inactive)",
		},
		[]string{"channel"},
	)

	AlarmTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_transitions_total",
			Help:      "Alarm edges by channel and direction",
		},
		[]string{"channel", "edge"},
	)

	Publishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Scheduled level publishes by outcome",
		},
		[]string{"status"},
	)

	SensorReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_reads_total",
			Help:      "Distance sensor reads by outcome",
		},
		[]string{"status"},
	)

	ModbusDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "modbus_operation_seconds",
			Help:      "Modbus operation latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Config storage operations by backend, operation and outcome",
		},
		[]string{"backend", "operation", "status"},
	)
)

func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func BoolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// ObserveModbus is a modbus instrumentation callback.
func ObserveModbus(operation string, d time.Duration) {
	ModbusDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Checkpoints counts retried config saves.
var Checkpoints = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "config_checkpoints_total",
		Help:      "Retried configuration saves by outcome",
	},
	[]string{"status"},
)
