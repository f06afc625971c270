// Package metrics exposes Prometheus instruments for import runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studentimport",
		Subsystem: "runs",
		Name:      "total",
		Help:      "Total number of import attempts broken down by terminal status.",
	}, []string{"status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "studentimport",
		Subsystem: "runs",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of import attempts.",
		Buckets: []float64{
			0.1, 0.5, 1, 2, 5,
			10, 30, 60, 120, 300,
		},
	}, []string{"status"})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "studentimport",
		Subsystem: "runs",
		Name:      "active",
		Help:      "Number of imports currently executing.",
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studentimport",
		Subsystem: "runs",
		Name:      "attempts_total",
		Help:      "Total number of import attempts broken down by result.",
	}, []string{"result"})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studentimport",
		Subsystem: "rows",
		Name:      "total",
		Help:      "Total number of processed rows broken down by outcome.",
	}, []string{"outcome"})

	entitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studentimport",
		Subsystem: "entities",
		Name:      "total",
		Help:      "Total number of committed entity writes broken down by kind and action.",
	}, []string{"kind", "action"})
)

// RunStarted marks an attempt as executing.
func RunStarted() {
	runsActive.Inc()
}

// RunFinished records the terminal status and duration of one attempt.
func RunFinished(status string, elapsed time.Duration) {
	runsActive.Dec()
	runsTotal.WithLabelValues(status).Inc()
	runDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordAttempt counts one attempt of the retry envelope.
func RecordAttempt(ok bool) {
	result := "failed"
	if ok {
		result = "succeeded"
	}
	attemptsTotal.WithLabelValues(result).Inc()
}

// RecordRow counts one processed row.
func RecordRow(ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	rowsTotal.WithLabelValues(outcome).Inc()
}

// RecordEntities adds n committed writes for kind ("student", "lecturer", ...)
// and action ("created" or "updated").
func RecordEntities(kind, action string, n int) {
	if n <= 0 {
		return
	}
	entitiesTotal.WithLabelValues(kind, action).Add(float64(n))
}
