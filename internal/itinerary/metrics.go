package itinerary

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clmundo"

var (
	segmentStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "itinerary",
			Name:      "segment_status_changes_total",
			Help:      "Total segment status changes",
		},
		[]string{"status"},
	)

	segmentsDelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "itinerary",
			Name:      "segments_delayed_total",
			Help:      "Total segments marked delayed by the delay check",
		},
	)
)

func recordSegmentStatusChange(status string) {
	segmentStatusChanges.WithLabelValues(status).Inc()
}

func recordSegmentDelayed() {
	segmentsDelayed.Inc()
}
