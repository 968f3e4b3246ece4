// Package metrics holds the Prometheus collectors of the query pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "wicket"

var (
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Fetch cache lookups",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	FetchTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_tasks_total",
			Help:      "Fetch tasks by source and outcome",
		},
		[]string{"source", "outcome"}, // "ok" / "simplified" / "failed" / "abandoned"
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream lookup duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Answer verification verdicts",
		},
		[]string{"verdict"},
	)

	RegenerationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regenerations_total",
			Help:      "Answers regenerated in strict mode",
		},
	)

	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers by terminal path",
		},
		[]string{"path"}, // "answer" / "clarification" / "no_data" / "ambiguous"
	)
)

func init() {
	prometheus.MustRegister(
		CacheLookupsTotal,
		FetchTasksTotal,
		FetchDuration,
		VerificationsTotal,
		RegenerationsTotal,
		AnswersTotal,
	)
}
