package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biocore_lookups_total",
			Help: "Total number of database lookups by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biocore_analyses_total",
			Help: "Total number of analysis requests by outcome",
		},
		[]string{"outcome"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biocore_completion_duration_seconds",
			Help:    "Duration of completion requests in seconds",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"outcome"},
	)

	ArchiveFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biocore_archive_failures_total",
			Help: "Total number of reports that could not be archived",
		},
		[]string{"archive"},
	)
)

// Outcome labels a result as "ok" or "failed".
func Outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
