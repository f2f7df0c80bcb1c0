// Package cache memoizes picker labels in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

var tracer = otel.Tracer("backoffice/cache")

// DefaultTTL bounds how long a label may outlive an edit of its row.
const DefaultTTL = 5 * time.Minute

// DefaultPrefix namespaces label keys.
const DefaultPrefix = "backoffice:label"

// Labels is a Redis-backed picker.LabelCache.
type Labels struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

var _ picker.LabelCache = (*Labels)(nil)

// NewLabels creates a label cache. A non-positive ttl uses DefaultTTL and an
// empty prefix uses DefaultPrefix.
func NewLabels(rdb redis.Cmdable, ttl time.Duration, prefix string) *Labels {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Labels{rdb: rdb, ttl: ttl, prefix: prefix}
}

// Key returns the Redis key for (entity, key).
func (c *Labels) Key(entity picker.EntityType, key int64) string {
	return c.prefix + ":" + entity.String() + ":" + strconv.FormatInt(key, 10)
}

// GetLabel returns the cached label. A miss is (false, nil).
func (c *Labels) GetLabel(ctx context.Context, entity picker.EntityType, key int64) (string, bool, error) {
	k := c.Key(entity, key)
	ctx, span := tracer.Start(ctx, "cache.GetLabel",
		trace.WithAttributes(attribute.String("cache.key", k)))
	defer span.End()

	val, err := c.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", false, fmt.Errorf("get label %s: %w", k, err)
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	return val, true, nil
}

// SetLabels stores every option's label in one pipeline.
func (c *Labels) SetLabels(ctx context.Context, entity picker.EntityType, options picker.OptionSet) error {
	if len(options) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "cache.SetLabels",
		trace.WithAttributes(
			attribute.String("entity_type", entity.String()),
			attribute.Int("cache.key_count", len(options)),
			attribute.Int64("cache.ttl_ms", c.ttl.Milliseconds()),
		))
	defer span.End()

	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, o := range options {
			pipe.Set(ctx, c.Key(entity, o.Key), o.Label, c.ttl)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("set labels: %w", err)
	}
	return nil
}

// Invalidate drops cached labels, for use after a row is edited or deleted.
func (c *Labels) Invalidate(ctx context.Context, entity picker.EntityType, keys ...int64) error {
	if len(keys) == 0 {
		return nil
	}
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = c.Key(entity, k)
	}
	if err := c.rdb.Del(ctx, ks...).Err(); err != nil {
		return fmt.Errorf("invalidate labels: %w", err)
	}
	return nil
}

// Connect opens a Redis client and verifies it answers.
func Connect(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("testing connection: %w", err)
	}
	return client, nil
}
