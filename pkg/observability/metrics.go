// Package observability holds the Prometheus metrics and OpenTelemetry spans
// emitted by the picker, the label cache, and form validation.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric exported by this module.
const Namespace = "backoffice"

// PickerMetrics holds all Prometheus metrics for reference pickers.
// A nil *PickerMetrics is valid and records nothing.
type PickerMetrics struct {
	SearchesTotal     *prometheus.CounterVec
	SearchSeconds     *prometheus.HistogramVec
	SearchResults     *prometheus.HistogramVec
	ResolvesTotal     *prometheus.CounterVec
	CacheLookupsTotal *prometheus.CounterVec
	ValidationsTotal  *prometheus.CounterVec
}

// DefaultPickerMetrics creates metrics registered with the default registry.
func DefaultPickerMetrics() *PickerMetrics {
	return NewPickerMetrics(prometheus.DefaultRegisterer)
}

// NewPickerMetrics creates a new set of picker metrics registered with reg.
func NewPickerMetrics(reg prometheus.Registerer) *PickerMetrics {
	factory := promauto.With(reg)

	return &PickerMetrics{
		SearchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "picker_searches_total",
				Help:      "Total picker searches by entity type and outcome",
			},
			[]string{"entity_type", "status"},
		),
		SearchSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "picker_search_seconds",
				Help:      "Picker search latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"entity_type"},
		),
		SearchResults: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "picker_search_results",
				Help:      "Number of options returned per search",
				Buckets:   []float64{0, 1, 5, 10, 25, 50},
			},
			[]string{"entity_type"},
		),
		ResolvesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "picker_resolves_total",
				Help:      "Total label resolutions by entity type and outcome",
			},
			[]string{"entity_type", "outcome"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "picker_label_cache_lookups_total",
				Help:      "Label cache lookups by entity type and result",
			},
			[]string{"entity_type", "result"},
		),
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "form_validations_total",
				Help:      "Form submissions validated, by form and outcome",
			},
			[]string{"form", "outcome"},
		),
	}
}

// RecordSearch records a completed search.
func (m *PickerMetrics) RecordSearch(entityType, status string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(entityType, status).Inc()
	m.SearchSeconds.WithLabelValues(entityType).Observe(elapsed.Seconds())
	if status == StatusOK {
		m.SearchResults.WithLabelValues(entityType).Observe(float64(results))
	}
}

// RecordResolve records a label resolution outcome.
func (m *PickerMetrics) RecordResolve(entityType, outcome string) {
	if m == nil {
		return
	}
	m.ResolvesTotal.WithLabelValues(entityType, outcome).Inc()
}

// RecordCacheLookup records a label cache hit, miss, or error.
func (m *PickerMetrics) RecordCacheLookup(entityType, result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(entityType, result).Inc()
}

// RecordValidation records a form validation outcome.
func (m *PickerMetrics) RecordValidation(form, outcome string) {
	if m == nil {
		return
	}
	m.ValidationsTotal.WithLabelValues(form, outcome).Inc()
}

// Outcome label values.
const (
	StatusOK    = "ok"
	StatusError = "error"

	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"

	ValidationPassed = "passed"
	ValidationFailed = "failed"
)
