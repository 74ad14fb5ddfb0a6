package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records assessment outcomes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	assessments         *prometheus.CounterVec
	assessmentDuration  *prometheus.HistogramVec
	overallScore        *prometheus.GaugeVec
	dimensionFailures   *prometheus.CounterVec
	sequentialFallbacks *prometheus.CounterVec
	selections          *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ekaya_health",
			Name:      "assessments_total",
			Help:      "Completed data health assessments.",
		}, []string{"schema_type", "assessment_type", "outcome"}),
		assessmentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ekaya_health",
			Name:      "assessment_duration_seconds",
			Help:      "Wall time of data health assessments.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"schema_type", "assessment_type"}),
		overallScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ekaya_health",
			Name:      "overall_score",
			Help:      "Overall health score of the latest assessment.",
		}, []string{"schema_type", "assessment_type"}),
		dimensionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ekaya_health",
			Name:      "dimension_failures_total",
			Help:      "Dimension checks replaced by a score-0 placeholder.",
		}, []string{"dimension"}),
		sequentialFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ekaya_health",
			Name:      "sequential_fallbacks_total",
			Help:      "Phases re-run sequentially after a parallel dispatch failure.",
		}, []string{"phase"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ekaya_health",
			Name:      "dimension_selections_total",
			Help:      "Dimension selections by source.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.assessments, m.assessmentDuration, m.overallScore,
			m.dimensionFailures, m.sequentialFallbacks, m.selections)
	}
	return m
}

func (m *Metrics) assessmentCompleted(schemaType, assessmentType string, seconds, score float64) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(schemaType, assessmentType, "success").Inc()
	m.assessmentDuration.WithLabelValues(schemaType, assessmentType).Observe(seconds)
	m.overallScore.WithLabelValues(schemaType, assessmentType).Set(score)
}

func (m *Metrics) assessmentFailed(schemaType, assessmentType string) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(schemaType, assessmentType, "error").Inc()
}

func (m *Metrics) dimensionFailed(dimension string) {
	if m == nil {
		return
	}
	m.dimensionFailures.WithLabelValues(dimension).Inc()
}

func (m *Metrics) sequentialFallback(phase string) {
	if m == nil {
		return
	}
	m.sequentialFallbacks.WithLabelValues(phase).Inc()
}

func (m *Metrics) selectionMade(source string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(source).Inc()
}
