package inference

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jota",
			Subsystem: "inference",
			Name:      "tasks_enqueued_total",
			Help:      "Total number of generation tasks enqueued on the dispatcher.",
		},
		[]string{"client_id"},
	)

	tasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jota",
			Subsystem: "inference",
			Name:      "tasks_completed_total",
			Help:      "Total number of generation tasks completed, by outcome.",
		},
		[]string{"outcome"},
	)

	tokensGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jota",
			Subsystem: "inference",
			Name:      "tokens_generated_total",
			Help:      "Total number of tokens emitted across all generation tasks.",
		},
		[]string{"client_id"},
	)

	generationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jota",
			Subsystem: "inference",
			Name:      "generation_duration_seconds",
			Help:      "Wall-clock duration of a single generation task.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	queueDepthGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jota",
			Subsystem: "inference",
			Name:      "queue_depth",
			Help:      "Number of generation tasks currently queued but not yet picked up by a worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		tasksEnqueuedTotal,
		tasksCompletedTotal,
		tokensGeneratedTotal,
		generationDurationSeconds,
		queueDepthGauge,
	)
}
