// Package metrics provides engine metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Writeback outcomes
const (
	WritebackInserted  = "inserted"
	WritebackDuplicate = "duplicate"
	WritebackFailed    = "failed"
	WritebackSkipped   = "skipped"
)

// EngineMetrics contains Prometheus metrics for verification requests
type EngineMetrics struct {
	registry *prometheus.Registry

	verifications *prometheus.CounterVec
	writebacks    *prometheus.CounterVec
	aiDuration    *prometheus.HistogramVec
	storeScore    prometheus.Histogram
}

// New creates metrics on a private registry
func New() *EngineMetrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates and registers metrics on registry
func NewWithRegistry(registry *prometheus.Registry) *EngineMetrics {
	m := &EngineMetrics{
		registry: registry,
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifact_verifications_total",
				Help: "Verification requests by deciding state",
			},
			[]string{"state"},
		),
		writebacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verifact_writebacks_total",
				Help: "Learning writeback outcomes",
			},
			[]string{"result"},
		),
		aiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verifact_ai_call_seconds",
				Help:    "Duration of AI verification calls",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"outcome"},
		),
		storeScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "verifact_store_best_score",
				Help:    "Best similarity score found in the fact-check store",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
	}
	registry.MustRegister(m.verifications, m.writebacks, m.aiDuration, m.storeScore)
	return m
}

// Registry exposes the registry, e.g. for an HTTP handler
func (m *EngineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordVerification counts a request by its deciding state
func (m *EngineMetrics) RecordVerification(state string) {
	m.verifications.WithLabelValues(state).Inc()
}

// RecordWriteback counts a writeback outcome
func (m *EngineMetrics) RecordWriteback(result string) {
	m.writebacks.WithLabelValues(result).Inc()
}

// ObserveAICall records one AI call
func (m *EngineMetrics) ObserveAICall(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.aiDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveStoreScore records the best store similarity of a lookup
func (m *EngineMetrics) ObserveStoreScore(score float64) {
	m.storeScore.Observe(score)
}

// Snapshot returns counter values keyed by "metric{label=value}"
func (m *EngineMetrics) Snapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range mf.GetMetric() {
			out[seriesName(mf.GetName(), metric.GetLabel())] = metric.GetCounter().GetValue()
		}
	}
	return out, nil
}

func seriesName(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	s := name + "{"
	for i, l := range labels {
		if i > 0 {
			s += ","
		}
		s += l.GetName() + "=" + l.GetValue()
	}
	return s + "}"
}
