package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_stream_lines_total",
			Help: "Lines read from the telemetry feed by result.",
		},
		[]string{"result"},
	)
	streamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_stream_reconnects_total",
			Help: "Reconnections to the telemetry server.",
		},
	)
)
