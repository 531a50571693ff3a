package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_records_total",
			Help: "Records handled by the pipeline by dataset and result.",
		},
		[]string{"dataset", "result"},
	)
	globalRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_global_runs_total",
			Help: "Global rule passes.",
		},
	)
	eventsLogged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_events_logged_total",
			Help: "Entries appended to the event log.",
		},
	)
)
