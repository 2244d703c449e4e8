package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clmundo"

var (
	notificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Total feed notifications created",
		},
	)

	outboundSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "outbound_total",
			Help:      "Total outbound messages by channel and delivery status",
		},
		[]string{"channel", "status"},
	)

	outboundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "outbound_duration_seconds",
			Help:      "Time to send an outbound message",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)
)

func recordNotificationCreated() {
	notificationsCreated.Inc()
}

func recordOutboundSent(channel, status string) {
	outboundSent.WithLabelValues(channel, status).Inc()
}

func recordOutboundDuration(channel string, duration time.Duration) {
	outboundDuration.WithLabelValues(channel).Observe(duration.Seconds())
}
