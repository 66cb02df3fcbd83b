package archive

import "github.com/prometheus/client_golang/prometheus"

var (
	sweepArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_chat_archive_messages_archived_total",
			Help: "Messages copied from the hot store into the archive.",
		},
	)
	sweepDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_chat_archive_messages_deleted_total",
			Help: "Messages removed from the hot store after archival.",
		},
	)
	sweepReconciled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_chat_archive_messages_reconciled_total",
			Help: "Hot messages removed because the archive already held them.",
		},
	)
	sweepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_chat_archive_failures_total",
			Help: "Sweep failures by phase.",
		},
		[]string{"phase"},
	)
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_chat_archive_sweep_duration_seconds",
			Help:    "Wall time of one full sweep.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(sweepArchived, sweepDeleted, sweepReconciled, sweepFailures, sweepDuration)
}

func recordFailure(phase string) {
	sweepFailures.WithLabelValues(phase).Inc()
}
