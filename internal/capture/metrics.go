package capture

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devicecheck",
		Subsystem: "capture",
		Name:      "acquisitions_total",
		Help:      "Capture acquisition attempts by device kind and outcome.",
	}, []string{"kind", "outcome"})

	acquisitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "devicecheck",
		Subsystem: "capture",
		Name:      "acquisition_duration_seconds",
		Help:      "Time spent waiting for the host to grant or refuse capture.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})

	liveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "devicecheck",
		Subsystem: "capture",
		Name:      "live_sessions",
		Help:      "Capture sessions currently holding hardware.",
	}, []string{"kind"})
)

// outcomeOK is the outcome label for successful acquisitions.
const outcomeOK = "ok"

func recordAcquisition(kind Kind, outcome string, started time.Time) {
	acquisitionsTotal.WithLabelValues(string(kind), outcome).Inc()
	acquisitionDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
}

func recordSessionOpened(kind Kind) {
	liveSessions.WithLabelValues(string(kind)).Inc()
}

func recordSessionClosed(kind Kind) {
	liveSessions.WithLabelValues(string(kind)).Dec()
}
