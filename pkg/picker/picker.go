package picker

import (
	"context"
	"errors"
	"fmt"
	"time"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/logging"
	"github.com/otherjamesbrown/backoffice/pkg/observability"
)

// Picker searches and resolves references to one entity type.
// A Picker holds no mutable state and is safe for concurrent use.
type Picker struct {
	desc    Descriptor
	engine  QueryEngine
	limit   int
	logger  logging.Logger
	metrics *observability.PickerMetrics
	tracer  *observability.Tracer
	cache   LabelCache
}

// New creates a picker for desc backed by engine.
func New(desc Descriptor, engine QueryEngine, opts ...PickerOption) *Picker {
	p := &Picker{
		desc:   desc,
		engine: engine,
		limit:  MaxOptions,
		logger: logging.NewNopLogger(),
		tracer: observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logging.F("entity_type", desc.Entity.String()))
	return p
}

// Entity returns the entity type this picker serves.
func (p *Picker) Entity() EntityType {
	return p.desc.Entity
}

// Limit returns the maximum number of options a search returns.
func (p *Picker) Limit() int {
	return p.limit
}

// Search returns the options whose searchable attributes contain query,
// case-insensitively, in store order. An empty query lists the first rows
// unfiltered. No matches is an empty set, not an error.
func (p *Picker) Search(ctx context.Context, query string) (OptionSet, error) {
	start := time.Now()
	entity := p.desc.Entity.String()

	ctx, span := p.tracer.StartSearchSpan(ctx, entity, len(query), p.limit)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	log := p.logger.WithContext(ctx)

	records, err := p.engine.Find(ctx, Query{
		Entity:     p.desc.Entity,
		Attributes: p.desc.Attributes,
		Pattern:    ContainsPattern(query),
		Fields:     p.desc.LabelFields,
		Limit:      p.limit,
	})
	if err != nil {
		err = engineError("search "+entity, err)
		p.fail(helper, log, "Picker search failed", err)
		p.metrics.RecordSearch(entity, observability.StatusError, time.Since(start), 0)
		return nil, err
	}

	options := make(OptionSet, 0, min(len(records), p.limit))
	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		if len(options) == p.limit {
			break
		}
		if _, dup := seen[r.Key]; dup {
			continue
		}
		seen[r.Key] = struct{}{}
		options = append(options, Option{Key: r.Key, Label: p.desc.Label(r)})
	}

	if p.cache != nil && len(options) > 0 {
		if err := p.cache.SetLabels(ctx, p.desc.Entity, options); err != nil {
			log.Warn("Failed to cache labels", logging.Err(err))
		}
	}

	helper.SetResultCount(len(options))
	helper.SetSuccess()
	p.metrics.RecordSearch(entity, observability.StatusOK, time.Since(start), len(options))
	log.Debug("Picker search",
		logging.F("query_length", len(query)),
		logging.F("results", len(options)),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
	)
	return options, nil
}

// ResolveLabel returns the label for a key that was chosen earlier. It
// returns an error wrapping errors.ErrNotFound when the row no longer exists
// or is soft-deleted. The store is always consulted; a cached label is only
// preferred over the freshly rendered one so the text matches what Search
// showed.
func (p *Picker) ResolveLabel(ctx context.Context, key int64) (string, error) {
	entity := p.desc.Entity.String()

	ctx, span := p.tracer.StartResolveSpan(ctx, entity, key)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	log := p.logger.WithContext(ctx).With(logging.F("key", key))

	rec, err := p.engine.Get(ctx, p.desc.Entity, key, p.desc.LabelFields)
	if err != nil {
		if bferrors.IsNotFound(err) {
			p.forget(ctx, key, log)
			helper.SetError(err, string(bferrors.CodeNotFound), false)
			p.metrics.RecordResolve(entity, observability.OutcomeNotFound)
			log.Debug("Referenced row not found")
			return "", fmt.Errorf("%s %d: %w", entity, key, bferrors.ErrNotFound)
		}
		err = engineError("resolve "+entity, err)
		p.fail(helper, log, "Picker resolve failed", err)
		p.metrics.RecordResolve(entity, observability.OutcomeError)
		return "", err
	}

	label, hit := p.cachedLabel(ctx, key, log)
	helper.SetCacheHit(hit)
	if !hit {
		label = p.desc.Label(*rec)
		if p.cache != nil {
			if err := p.cache.SetLabels(ctx, p.desc.Entity, OptionSet{{Key: key, Label: label}}); err != nil {
				log.Warn("Failed to cache label", logging.Err(err))
			}
		}
	}

	helper.SetSuccess()
	p.metrics.RecordResolve(entity, observability.OutcomeFound)
	return label, nil
}

// Exists reports whether key refers to a row in the table. Forms call it at
// submission time since a key offered earlier may have been deleted since.
func (p *Picker) Exists(ctx context.Context, key int64) (bool, error) {
	entity := p.desc.Entity.String()

	ctx, span := p.tracer.StartExistsSpan(ctx, entity, key)
	defer span.End()
	helper := observability.NewSpanHelper(span)

	ok, err := p.engine.Exists(ctx, p.desc.Entity, key)
	if err != nil {
		err = engineError("exists "+entity, err)
		p.fail(helper, p.logger.WithContext(ctx).With(logging.F("key", key)), "Existence check failed", err)
		return false, err
	}
	helper.SetSuccess()
	return ok, nil
}

func (p *Picker) cachedLabel(ctx context.Context, key int64, log logging.Logger) (string, bool) {
	if p.cache == nil {
		return "", false
	}
	entity := p.desc.Entity.String()
	label, ok, err := p.cache.GetLabel(ctx, p.desc.Entity, key)
	switch {
	case err != nil:
		p.metrics.RecordCacheLookup(entity, observability.CacheError)
		log.Warn("Label cache lookup failed", logging.Err(err))
		return "", false
	case !ok:
		p.metrics.RecordCacheLookup(entity, observability.CacheMiss)
		return "", false
	default:
		p.metrics.RecordCacheLookup(entity, observability.CacheHit)
		return label, true
	}
}

// forget drops a cached label for a row that is gone.
func (p *Picker) forget(ctx context.Context, key int64, log logging.Logger) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx, p.desc.Entity, key); err != nil {
		log.Warn("Failed to invalidate cached label", logging.Err(err))
	}
}

// fail records err on the span and the log. Caller mistakes are logged at
// warn and marked non-retryable; store outages are errors.
func (p *Picker) fail(helper *observability.SpanHelper, log logging.Logger, msg string, err error) {
	code := bferrors.Classify(err)
	helper.SetError(err, string(code), bferrors.IsRetryable(code))
	if code == bferrors.CodeInvalidRequest {
		log.Warn(msg, logging.Err(err))
		return
	}
	log.Error(msg, logging.Err(err))
}

// engineError wraps a failure coming out of the engine. Errors already
// carrying ErrInvalidRequest or ErrStoreUnavailable keep their sentinel;
// anything else is reported as ErrStoreUnavailable.
func engineError(op string, err error) error {
	if errors.Is(err, bferrors.ErrStoreUnavailable) || errors.Is(err, bferrors.ErrInvalidRequest) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, bferrors.ErrStoreUnavailable, err)
}
