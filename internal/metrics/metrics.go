package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for Submissions besides the error codes.
const OutcomeAccepted = "accepted"

var (
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "submissions_total",
		Help:      "Attendance submissions by outcome.",
	}, []string{"outcome"})

	NotificationsServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "notifications_total",
		Help:      "Notification lists served.",
	})

	GeofenceDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attendance",
		Name:      "geofence_distance_meters",
		Help:      "Distance from the classroom for submissions rejected by the geofence.",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 5000},
	})
)
