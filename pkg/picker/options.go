package picker

import (
	"context"

	"github.com/otherjamesbrown/backoffice/pkg/logging"
	"github.com/otherjamesbrown/backoffice/pkg/observability"
)

// LabelCache memoizes rendered labels. Implementations must tolerate being
// written concurrently.
type LabelCache interface {
	GetLabel(ctx context.Context, entity EntityType, key int64) (string, bool, error)
	SetLabels(ctx context.Context, entity EntityType, options OptionSet) error
	Invalidate(ctx context.Context, entity EntityType, keys ...int64) error
}

// PickerOption configures a Picker.
type PickerOption func(*Picker)

// WithLimit sets the maximum number of options. Values outside 1..MaxOptions
// fall back to MaxOptions.
func WithLimit(limit int) PickerOption {
	return func(p *Picker) {
		if limit <= 0 || limit > MaxOptions {
			limit = MaxOptions
		}
		p.limit = limit
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) PickerOption {
	return func(p *Picker) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *observability.PickerMetrics) PickerOption {
	return func(p *Picker) {
		p.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) PickerOption {
	return func(p *Picker) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithLabelCache enables the label cache.
func WithLabelCache(c LabelCache) PickerOption {
	return func(p *Picker) {
		p.cache = c
	}
}
