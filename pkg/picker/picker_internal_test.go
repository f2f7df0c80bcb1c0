package picker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/observability"
)

// MockEngine is a mock implementation of QueryEngine.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Find(ctx context.Context, q Query) ([]Record, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Record), args.Error(1)
}

func (m *MockEngine) Get(ctx context.Context, entity EntityType, key int64, fields []string) (*Record, error) {
	args := m.Called(ctx, entity, key, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockEngine) Exists(ctx context.Context, entity EntityType, key int64) (bool, error) {
	args := m.Called(ctx, entity, key)
	return args.Bool(0), args.Error(1)
}

// MockCache is a mock implementation of LabelCache.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetLabel(ctx context.Context, entity EntityType, key int64) (string, bool, error) {
	args := m.Called(ctx, entity, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCache) SetLabels(ctx context.Context, entity EntityType, options OptionSet) error {
	args := m.Called(ctx, entity, options)
	return args.Error(0)
}

func (m *MockCache) Invalidate(ctx context.Context, entity EntityType, keys ...int64) error {
	args := m.Called(ctx, entity, keys)
	return args.Error(0)
}

func user(key int64, name, email string) Record {
	return Record{Key: key, Fields: map[string]string{"name": name, "email": email}}
}

func TestSearch_BuildsQuery(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Find", mock.Anything, Query{
		Entity:     EntityUser,
		Attributes: []string{"name", "email", "id"},
		Pattern:    "%an%",
		Fields:     []string{"name", "email"},
		Limit:      MaxOptions,
	}).Return([]Record{user(1, "Ana", "ana@x.io")}, nil)

	p := New(Users, engine)
	got, err := p.Search(context.Background(), "an")

	require.NoError(t, err)
	assert.Equal(t, OptionSet{{Key: 1, Label: "Ana - ana@x.io"}}, got)
	engine.AssertExpectations(t)
}

func TestSearch_TruncatesAndDedupes(t *testing.T) {
	var rows []Record
	for i := int64(1); i <= 60; i++ {
		rows = append(rows, user(i, "n", "e"))
		if i == 5 {
			rows = append(rows, user(5, "dup", "dup"))
		}
	}
	engine := new(MockEngine)
	engine.On("Find", mock.Anything, mock.Anything).Return(rows, nil)

	got, err := New(Users, engine).Search(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, MaxOptions)

	seen := map[int64]bool{}
	for _, o := range got {
		assert.False(t, seen[o.Key], "duplicate key %d", o.Key)
		seen[o.Key] = true
	}
	label, _ := got.Label(5)
	assert.Equal(t, "n - e", label, "first occurrence wins")
}

func TestWithLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{10, 10},
		{50, 50},
		{0, MaxOptions},
		{-1, MaxOptions},
		{500, MaxOptions},
	}
	for _, tt := range tests {
		p := New(Users, new(MockEngine), WithLimit(tt.in))
		assert.Equal(t, tt.want, p.Limit(), "WithLimit(%d)", tt.in)
	}
}

func TestSearch_StoreFailure(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Find", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	reg := prometheus.NewRegistry()
	metrics := observability.NewPickerMetrics(reg)

	got, err := New(Users, engine, WithMetrics(metrics)).Search(context.Background(), "an")

	assert.Nil(t, got, "no partial results")
	assert.True(t, bferrors.IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues("users", observability.StatusError)))
}

func TestSearch_StoreUnavailableNotDoubleWrapped(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Find", mock.Anything, mock.Anything).
		Return(nil, errors.Join(bferrors.ErrStoreUnavailable, errors.New("down")))

	_, err := New(Users, engine).Search(context.Background(), "")
	assert.True(t, bferrors.IsStoreUnavailable(err))
	assert.Equal(t, bferrors.CodeStoreUnavailable, bferrors.Classify(err))
}

func TestResolveLabel_StoreFailure(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Get", mock.Anything, EntityUser, int64(1), mock.Anything).Return(nil, errors.New("timeout"))

	_, err := New(Users, engine).ResolveLabel(context.Background(), 1)
	assert.True(t, bferrors.IsStoreUnavailable(err))
	assert.False(t, bferrors.IsNotFound(err))
}

func TestResolveLabel_NotFoundMetrics(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Get", mock.Anything, EntityPost, int64(999), mock.Anything).
		Return(nil, bferrors.ErrNotFound)
	metrics := observability.NewPickerMetrics(prometheus.NewRegistry())

	_, err := New(Posts, engine, WithMetrics(metrics)).ResolveLabel(context.Background(), 999)
	assert.ErrorIs(t, err, bferrors.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResolvesTotal.WithLabelValues("posts", observability.OutcomeNotFound)))
}

func TestSearch_WritesThroughCache(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Find", mock.Anything, mock.Anything).Return([]Record{user(1, "Ana", "ana@x.io")}, nil)
	cache := new(MockCache)
	cache.On("SetLabels", mock.Anything, EntityUser, OptionSet{{Key: 1, Label: "Ana - ana@x.io"}}).Return(nil)

	_, err := New(Users, engine, WithLabelCache(cache)).Search(context.Background(), "a")
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestSearch_CacheFailureIgnored(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Find", mock.Anything, mock.Anything).Return([]Record{user(1, "Ana", "ana@x.io")}, nil)
	cache := new(MockCache)
	cache.On("SetLabels", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	got, err := New(Users, engine, WithLabelCache(cache)).Search(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestResolveLabel_CacheHitStillChecksRow(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Get", mock.Anything, EntityUser, int64(1), []string{"name", "email"}).
		Return(&Record{Key: 1, Fields: map[string]string{"name": "Ana", "email": "ana@x.io"}}, nil)
	cache := new(MockCache)
	cache.On("GetLabel", mock.Anything, EntityUser, int64(1)).Return("Ana - ana@x.io", true, nil)
	metrics := observability.NewPickerMetrics(prometheus.NewRegistry())

	label, err := New(Users, engine, WithLabelCache(cache), WithMetrics(metrics)).ResolveLabel(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana - ana@x.io", label)
	engine.AssertExpectations(t)
	cache.AssertNotCalled(t, "SetLabels", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookupsTotal.WithLabelValues("users", observability.CacheHit)))
}

func TestResolveLabel_CachedLabelForDeletedRow(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Get", mock.Anything, EntityUser, int64(1), mock.Anything).Return(nil, bferrors.ErrNotFound)
	cache := new(MockCache)
	cache.On("Invalidate", mock.Anything, EntityUser, []int64{1}).Return(nil)

	label, err := New(Users, engine, WithLabelCache(cache)).ResolveLabel(context.Background(), 1)
	assert.Empty(t, label)
	assert.True(t, bferrors.IsNotFound(err))
	cache.AssertExpectations(t)
	cache.AssertNotCalled(t, "GetLabel", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveLabel_InvalidateFailureIgnored(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Get", mock.Anything, EntityUser, int64(1), mock.Anything).Return(nil, bferrors.ErrNotFound)
	cache := new(MockCache)
	cache.On("Invalidate", mock.Anything, EntityUser, []int64{1}).Return(errors.New("redis down"))

	_, err := New(Users, engine, WithLabelCache(cache)).ResolveLabel(context.Background(), 1)
	assert.True(t, bferrors.IsNotFound(err))
	assert.False(t, bferrors.IsStoreUnavailable(err))
}

func TestEngineError_InvalidRequestPassesThrough(t *testing.T) {
	cause := fmt.Errorf("unknown column %q: %w", "phone", bferrors.ErrInvalidRequest)

	err := engineError("search users", cause)
	assert.True(t, bferrors.IsInvalidRequest(err))
	assert.False(t, bferrors.IsStoreUnavailable(err))
	assert.Equal(t, bferrors.CodeInvalidRequest, bferrors.Classify(err))
}

func TestSearch_InvalidRequestNotCountedAsOutage(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Find", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("entity %q: %w", "widgets", bferrors.ErrInvalidRequest))

	_, err := New(Users, engine).Search(context.Background(), "a")
	assert.True(t, bferrors.IsInvalidRequest(err))
	assert.False(t, bferrors.IsStoreUnavailable(err))
}

func TestResolveLabel_InvalidRequestNotCountedAsOutage(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Get", mock.Anything, EntityUser, int64(1), mock.Anything).
		Return(nil, fmt.Errorf("column %q: %w", "phone", bferrors.ErrInvalidRequest))
	metrics := observability.NewPickerMetrics(prometheus.NewRegistry())

	_, err := New(Users, engine, WithMetrics(metrics)).ResolveLabel(context.Background(), 1)
	assert.True(t, bferrors.IsInvalidRequest(err))
	assert.False(t, bferrors.IsStoreUnavailable(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResolvesTotal.WithLabelValues("users", observability.OutcomeError)))
}

func TestResolveLabel_CacheErrorFallsBackToEngine(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Get", mock.Anything, EntityUser, int64(1), []string{"name", "email"}).
		Return(&Record{Key: 1, Fields: map[string]string{"name": "Ana", "email": "ana@x.io"}}, nil)
	cache := new(MockCache)
	cache.On("GetLabel", mock.Anything, EntityUser, int64(1)).Return("", false, errors.New("redis down"))
	cache.On("SetLabels", mock.Anything, EntityUser, mock.Anything).Return(errors.New("redis down"))

	label, err := New(Users, engine, WithLabelCache(cache)).ResolveLabel(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana - ana@x.io", label)
}

func TestExists(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Exists", mock.Anything, EntityUser, int64(1)).Return(true, nil)
	engine.On("Exists", mock.Anything, EntityUser, int64(2)).Return(false, nil)
	engine.On("Exists", mock.Anything, EntityUser, int64(3)).Return(false, errors.New("boom"))

	p := New(Users, engine)
	ctx := context.Background()

	ok, err := p.Exists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Exists(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Exists(ctx, 3)
	assert.True(t, bferrors.IsStoreUnavailable(err))
}

func TestRecordField(t *testing.T) {
	r := Record{Key: 7, Fields: map[string]string{"name": "Ana"}}
	assert.Equal(t, "7", r.Field("id"))
	assert.Equal(t, "Ana", r.Field("name"))
	assert.Equal(t, "", r.Field("missing"))
}
