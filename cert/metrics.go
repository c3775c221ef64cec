package cert

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// validationsTotal tracks validation results
	// Labels: result (trusted, serialization, signature, validity, time, untrusted)
	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smolcert_validations_total",
			Help: "Total number of certificate chain validations grouped by result",
		},
		[]string{"result"},
	)

	// chainLength tracks the number of certificates per validated chain
	chainLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smolcert_chain_length",
			Help:    "Number of certificates in validated chains",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)

	// validationDuration tracks the duration of a single validation call
	validationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smolcert_validation_duration_seconds",
			Help:    "Duration of certificate chain validations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)
)

// resultLabel maps a validation error to its metrics label
func resultLabel(err error) string {
	if err == nil {
		return "trusted"
	}
	return KindOf(err).String()
}

// recordValidation records the outcome of one validation call
func recordValidation(err error, length int, duration time.Duration) {
	validationsTotal.WithLabelValues(resultLabel(err)).Inc()
	chainLength.Observe(float64(length))
	validationDuration.Observe(duration.Seconds())
}
