// Package metrics defines Prometheus metrics for parkwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parkwatch"

// Poll cycle metrics.
var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Total number of completed poll cycles.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of poll cycles in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	AvailabilityFound = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "availability_found",
		Help:      "Whether the most recent cycle found any bookable date (0 or 1).",
	})
)

// Upstream fetch metrics.
var (
	FetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetches_total",
		Help:      "Total number of upstream fetch-unit requests.",
	})

	FetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_failures_total",
		Help:      "Total number of failed fetch units.",
	})

	SessionRepairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_repairs_total",
		Help:      "Total number of upstream session re-establishments.",
	})
)

// Notification metrics.
var (
	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Total notifications delivered, per channel.",
	}, []string{"channel"})

	NotificationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Total notification delivery failures, per channel.",
	}, []string{"channel"})
)
