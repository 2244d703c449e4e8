package incidents

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clmundo"

var (
	incidentsReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "reported_total",
			Help:      "Total incidents reported",
		},
		[]string{"severity", "category"},
	)

	incidentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "transitions_total",
			Help:      "Total incident status transitions",
		},
		[]string{"from", "to"},
	)

	satisfactionRatings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "satisfaction_ratings_total",
			Help:      "Total customer satisfaction ratings by value",
		},
		[]string{"rating"},
	)

	sweepAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "alerts_total",
			Help:      "Total escalation alerts by delivery status",
		},
		[]string{"status"},
	)

	sweepOverdue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "overdue_incidents",
			Help:      "Overdue incidents found in the last sweep",
		},
	)
)

func recordIncidentReported(severity, category string) {
	incidentsReported.WithLabelValues(severity, category).Inc()
}

func recordIncidentTransition(from, to string) {
	incidentTransitions.WithLabelValues(from, to).Inc()
}

func recordSatisfactionRating(rating int) {
	satisfactionRatings.WithLabelValues(strconv.Itoa(rating)).Inc()
}

func recordSweepAlert(status string) {
	sweepAlerts.WithLabelValues(status).Inc()
}

func recordSweepRun(overdue int) {
	sweepOverdue.Set(float64(overdue))
}
