package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CertificatesIssued prometheus.Counter
	DuplicateDigests   prometheus.Counter
	AttemptsByVerdict  *prometheus.CounterVec
	OCRFailures        prometheus.Counter
	OCRLatency         prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_certificates_issued_total",
			Help: "Total number of certificates issued to the ledger",
		}),
		DuplicateDigests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_duplicate_digests_total",
			Help: "Total number of issuance attempts rejected for duplicate digest",
		}),
		AttemptsByVerdict: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_verification_attempts_total",
			Help: "Total number of verification attempts by verdict",
		}, []string{"verdict"}),
		OCRFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_ocr_failures_total",
			Help: "Total number of failed OCR round-trips",
		}),
		OCRLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_ocr_latency_seconds",
			Help:    "Latency of OCR extraction round-trips",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}

// IncrementIssued increments the issued certificate counter by 1.
func (m *Metrics) IncrementIssued() {
	if m != nil {
		m.CertificatesIssued.Inc()
	}
}

// IncrementDuplicate increments the duplicate digest rejection counter by 1.
func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.DuplicateDigests.Inc()
	}
}

// ObserveAttempt counts a verification attempt under its verdict label.
func (m *Metrics) ObserveAttempt(verdict string) {
	if m != nil {
		m.AttemptsByVerdict.WithLabelValues(verdict).Inc()
	}
}

// IncrementOCRFailure counts a failed OCR round-trip.
func (m *Metrics) IncrementOCRFailure() {
	if m != nil {
		m.OCRFailures.Inc()
	}
}

// ObserveOCRLatency records one OCR round-trip duration.
func (m *Metrics) ObserveOCRLatency(d time.Duration) {
	if m != nil {
		m.OCRLatency.Observe(d.Seconds())
	}
}
