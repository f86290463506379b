package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VerificationTotal counts signature verifications by outcome
	// ("verified" or the rejection kind)
	VerificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ricqchet_verification_total",
			Help: "Total number of webhook signature verifications by outcome",
		},
		[]string{"outcome"},
	)

	// VerificationDuration tracks time spent verifying a delivery, including
	// reading the body
	VerificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ricqchet_verification_duration_seconds",
			Help:    "Duration of webhook signature verification in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// SignatureAge tracks the age of verified signatures in seconds
	SignatureAge = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ricqchet_signature_age_seconds",
			Help:    "Age of verified delivery signatures in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
		},
	)

	// DeliveriesTotal counts deliveries by handling status
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ricqchet_deliveries_total",
			Help: "Total number of webhook deliveries by status",
		},
		[]string{"status"},
	)

	// DedupHitsTotal counts deliveries dropped as already seen
	DedupHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ricqchet_dedup_hits_total",
			Help: "Total number of redelivered messages suppressed by deduplication",
		},
	)

	// DeliveryQueueDepth reports the number of queued deliveries
	DeliveryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ricqchet_delivery_queue_depth",
			Help: "Number of verified deliveries waiting for a worker",
		},
	)

	// DeliveryProcessingDuration tracks handler duration per delivery
	DeliveryProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ricqchet_delivery_processing_duration_seconds",
			Help:    "Duration of delivery processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// RecordVerification records a verification outcome and its duration
func RecordVerification(outcome string, duration float64) {
	VerificationTotal.WithLabelValues(outcome).Inc()
	VerificationDuration.Observe(duration)
}

// RecordSignatureAge records how old a verified signature was
func RecordSignatureAge(ageSeconds float64) {
	if ageSeconds < 0 {
		ageSeconds = 0
	}
	SignatureAge.Observe(ageSeconds)
}

// RecordDelivery records a delivery status
func RecordDelivery(status string) {
	DeliveriesTotal.WithLabelValues(status).Inc()
}

// RecordDedupHit records a suppressed redelivery
func RecordDedupHit() {
	DedupHitsTotal.Inc()
}

// SetQueueDepth updates the queue depth gauge
func SetQueueDepth(depth int) {
	DeliveryQueueDepth.Set(float64(depth))
}

// RecordProcessing records how long a delivery handler ran
func RecordProcessing(status string, duration float64) {
	DeliveryProcessingDuration.WithLabelValues(status).Observe(duration)
}
