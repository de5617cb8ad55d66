package checker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"
)

var (
	diagnosisStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "devicecheck",
		Subsystem: "diagnosis",
		Name:      "status",
		Help:      "Current diagnosis per device; 1 for the active status, 0 otherwise.",
	}, []string{"device", "status"})

	diagnosisChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devicecheck",
		Subsystem: "diagnosis",
		Name:      "changes_total",
		Help:      "Published diagnosis changes by device and new status.",
	}, []string{"device", "status"})
)

var allStatuses = []diagnosis.Status{
	diagnosis.StatusOK,
	diagnosis.StatusPermissionDenied,
	diagnosis.StatusNoDevice,
	diagnosis.StatusInUseElsewhere,
	diagnosis.StatusInputMuted,
	diagnosis.StatusNoAudioDetected,
	diagnosis.StatusBlockedByBrowser,
	diagnosis.StatusUnknownError,
}

func recordDiagnosis(d diagnosis.Diagnosis) {
	device := string(d.Device)
	for _, s := range allStatuses {
		v := 0.0
		if s == d.Status {
			v = 1
		}
		diagnosisStatus.WithLabelValues(device, string(s)).Set(v)
	}
	diagnosisChanges.WithLabelValues(device, string(d.Status)).Inc()
}
