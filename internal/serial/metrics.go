package serial

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wander_client",
			Subsystem: "serial",
			Name:      "submissions_total",
			Help:      "Jobs accepted into the serial executor.",
		},
		[]string{"shard"},
	)

	queueFullTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wander_client",
			Subsystem: "serial",
			Name:      "queue_full_total",
			Help:      "Submissions rejected because a shard queue was full.",
		},
		[]string{"shard"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wander_client",
			Subsystem: "serial",
			Name:      "run_duration_seconds",
			Help:      "Wall time of individual job attempts.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"shard"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wander_client",
			Subsystem: "serial",
			Name:      "queue_depth",
			Help:      "Jobs waiting per shard.",
		},
		[]string{"shard"},
	)
)

func labelFor(shard int) string { return strconv.Itoa(shard) }
