package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewPickerMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPickerMetrics(reg)
	require.NotNil(t, m)

	m.RecordSearch("users", StatusOK, 3*time.Millisecond, 2)
	m.RecordResolve("users", OutcomeFound)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["backoffice_picker_searches_total"])
	assert.True(t, names["backoffice_picker_search_seconds"])
	assert.True(t, names["backoffice_picker_search_results"])
	assert.True(t, names["backoffice_picker_resolves_total"])
}

func TestPickerMetrics_Counters(t *testing.T) {
	m := NewPickerMetrics(prometheus.NewRegistry())

	m.RecordSearch("users", StatusOK, time.Millisecond, 2)
	m.RecordSearch("users", StatusOK, time.Millisecond, 0)
	m.RecordSearch("posts", StatusError, time.Millisecond, 0)
	m.RecordResolve("posts", OutcomeNotFound)
	m.RecordCacheLookup("users", CacheHit)
	m.RecordValidation("private_message", ValidationFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("users", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("posts", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolvesTotal.WithLabelValues("posts", OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("users", CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("private_message", ValidationFailed)))
}

func TestPickerMetrics_NilSafe(t *testing.T) {
	var m *PickerMetrics
	assert.NotPanics(t, func() {
		m.RecordSearch("users", StatusOK, time.Millisecond, 1)
		m.RecordResolve("users", OutcomeFound)
		m.RecordCacheLookup("users", CacheMiss)
		m.RecordValidation("comment", ValidationPassed)
	})
}

func TestTracer_Spans(t *testing.T) {
	tracer := NewTracerWithProvider(noop.NewTracerProvider())
	ctx := context.Background()

	ctx, span := tracer.StartSearchSpan(ctx, "users", 2, 50)
	require.NotNil(t, span)
	helper := NewSpanHelper(span)
	helper.SetResultCount(2)
	helper.SetCacheHit(false)
	helper.SetError(errors.New("boom"), "store_unavailable", true)
	helper.SetSuccess()
	span.End()

	_, span = tracer.StartResolveSpan(ctx, "posts", 7)
	span.End()
	_, span = tracer.StartExistsSpan(ctx, "users", 1)
	span.End()
	_, span = tracer.StartValidateSpan(ctx, "comment")
	span.End()

	assert.Empty(t, GetTraceID(context.Background()))
}

func TestNewTracer_UsesGlobalProvider(t *testing.T) {
	tracer := NewTracer()
	_, span := tracer.StartSearchSpan(context.Background(), "users", 0, 50)
	defer span.End()
	assert.NotNil(t, span)
}
