package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	senderResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_sender_results_total",
			Help: "External notification results by sender and status.",
		},
		[]string{"sender", "status"},
	)
	webhookSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_webhook_send_duration_seconds",
			Help:    "Duration of webhook notification HTTP requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	dispatchRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_dispatch_rate_limited_total",
			Help: "Notifications suppressed by the per-station rate limit.",
		},
		[]string{"station"},
	)
)
