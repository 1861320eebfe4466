// Package metrics provides Prometheus metrics for the bridge: stripe and
// row throughput, materialization latency, and live handle counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StripesRead counts stripes decoded per reader outcome.
	StripesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orcbridge",
			Name:      "stripes_read_total",
			Help:      "Total number of stripes decoded",
		},
		[]string{"status"},
	)

	// RowsMaterialized counts rows appended into Arrow builders.
	RowsMaterialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orcbridge",
			Name:      "rows_materialized_total",
			Help:      "Total number of rows materialized into Arrow arrays",
		},
	)

	// MaterializeLatency tracks the latency of materializing one batch.
	MaterializeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "orcbridge",
			Name:      "materialize_latency_seconds",
			Help:      "Latency of materializing one decoded batch",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	// TranslationErrors counts schema setups aborted by translation errors.
	TranslationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orcbridge",
			Name:      "translation_errors_total",
			Help:      "Total number of schemas rejected during translation",
		},
	)

	// LiveHandles tracks live registry associations per resource kind.
	LiveHandles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "orcbridge",
			Name:      "live_handles",
			Help:      "Live handle registry associations",
		},
		[]string{"kind"},
	)
)

// ObserveMaterialize records one batch materialization.
func ObserveMaterialize(rows int, start time.Time) {
	RowsMaterialized.Add(float64(rows))
	MaterializeLatency.Observe(time.Since(start).Seconds())
}
