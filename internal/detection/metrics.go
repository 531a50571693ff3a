package detection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ruleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_rule_evaluations_total",
			Help: "Total rule evaluations by rule and result.",
		},
		[]string{"rule", "result"},
	)
	ruleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_rule_evaluation_duration_seconds",
			Help:    "Duration of a single rule evaluation.",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"rule"},
	)
	findingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_findings_total",
			Help: "Total findings produced by event name and severity.",
		},
		[]string{"event_name", "severity"},
	)
)
