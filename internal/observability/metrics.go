// Package observability holds process-wide Prometheus collectors for the
// footprint service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "footprint_service"

var (
	emissionsLoggedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "emissions",
		Name:      "records_logged_total",
		Help:      "Number of activity records persisted, labeled by category.",
	}, []string{"category"})

	emissionsKgCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "emissions",
		Name:      "co2_kg_logged_total",
		Help:      "Kilograms of CO2 equivalent persisted, labeled by category.",
	}, []string{"category"})

	lastLoggedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "last_record_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity record persisted.",
	})

	goalTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "goals",
		Name:      "status_transitions_total",
		Help:      "Number of goal status transitions, labeled by resulting status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(emissionsLoggedCounter, emissionsKgCounter, lastLoggedGauge, goalTransitionCounter)
}

// RecordEmissionLogged updates the logging counters and the persistence watermark.
func RecordEmissionLogged(category string, kg float64, ts time.Time) {
	emissionsLoggedCounter.WithLabelValues(category).Inc()
	if kg > 0 {
		emissionsKgCounter.WithLabelValues(category).Add(kg)
	}
	if ts.IsZero() {
		return
	}
	lastLoggedGauge.Set(float64(ts.Unix()))
}

// RecordGoalTransition counts a goal moving to status.
func RecordGoalTransition(status string) {
	goalTransitionCounter.WithLabelValues(status).Inc()
}
