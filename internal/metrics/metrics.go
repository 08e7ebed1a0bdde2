package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for credential evaluation.
type Metrics struct {
	// Evidence check latencies by source
	EvidenceLatency *prometheus.HistogramVec

	// Verdicts issued
	VerdictTotal *prometheus.CounterVec

	// Checks that could not produce a result, by check and reason
	DegradedTotal *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New registers the metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EvidenceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credtrust_evidence_duration_seconds",
			Help:    "Duration of evidence checks by source",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}), // source: "registry", "reputation", "ocr", "ela", "institution", "credential"

		VerdictTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credtrust_verdicts_total",
			Help: "Total verdicts by outcome and whether an override signature matched",
		}, []string{"verdict", "forced"}),

		DegradedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credtrust_degraded_checks_total",
			Help: "Total degraded evidence checks by check name and reason",
		}, []string{"check", "reason"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "credtrust_evaluate_duration_seconds",
			Help:    "Duration of a full evaluation including evidence gathering",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObserveEvidenceLatency records the duration of one evidence check.
func (m *Metrics) ObserveEvidenceLatency(source string, d time.Duration) {
	if m != nil {
		m.EvidenceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementVerdict records a verdict.
func (m *Metrics) IncrementVerdict(verdict string, forced bool) {
	if m != nil {
		f := "false"
		if forced {
			f = "true"
		}
		m.VerdictTotal.WithLabelValues(verdict, f).Inc()
	}
}

// IncrementDegraded records a degraded check.
func (m *Metrics) IncrementDegraded(check, reason string) {
	if m != nil {
		m.DegradedTotal.WithLabelValues(check, reason).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
