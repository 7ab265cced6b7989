// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClosingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boletim_closings_total",
			Help: "Total number of grade record closings by resulting status",
		},
		[]string{"offering", "status"},
	)

	SyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boletim_syncs_total",
			Help: "Total number of sync-on-grading runs",
		},
		[]string{"offering", "synced"},
	)

	FinalGradeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boletim_final_grade",
			Help:    "Distribution of persisted final grades",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
		[]string{"offering"},
	)

	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boletim_reports_total",
			Help: "Total number of report card assemblies",
		},
		[]string{"format"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
