package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	dashboardSummaryKeyPrefix = "billing:dashboard:"
	invoiceDocumentKeyPrefix  = "billing:document:"
)

// ErrCacheMiss is returned by Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// RedisCacheRepository is a JSON cache over Redis with OTel spans on every call
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// Get retrieves a value from cache by key with OTel tracing
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return ErrCacheMiss
		}
		span.RecordError(err)
		return errors.Wrap(err, "redis get")
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "unmarshal cached value")
	}
	return nil
}

// Set stores a value in cache with TTL and OTel tracing
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "marshal cache value")
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Delete removes keys from cache with OTel tracing
func (r *RedisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))),
	)
	defer span.End()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "redis delete")
	}
	return nil
}

// DeleteByPattern removes keys matching a pattern (use sparingly - O(N))
func (r *RedisCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.DeleteByPattern",
		trace.WithAttributes(attribute.String("cache.pattern", pattern)),
	)
	defer span.End()

	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "redis keys")
	}
	if len(keys) == 0 {
		return nil
	}

	span.SetAttributes(attribute.Int("cache.matched_keys", len(keys)))
	return r.client.Del(ctx, keys...).Err()
}

// =============================================================================
// Billing caches
// =============================================================================

// GetDashboardSummary reads the cached summary for a business date (YYYY-MM-DD)
func (r *RedisCacheRepository) GetDashboardSummary(ctx context.Context, date string, dest interface{}) error {
	return r.Get(ctx, dashboardSummaryKeyPrefix+date, dest)
}

// SetDashboardSummary caches the summary for a business date
func (r *RedisCacheRepository) SetDashboardSummary(ctx context.Context, date string, data interface{}, ttl time.Duration) error {
	return r.Set(ctx, dashboardSummaryKeyPrefix+date, data, ttl)
}

// InvalidateDashboard drops every cached summary. Called after invoices or customers change.
func (r *RedisCacheRepository) InvalidateDashboard(ctx context.Context) error {
	return r.DeleteByPattern(ctx, dashboardSummaryKeyPrefix+"*")
}

// GetInvoiceDocumentURL returns the archived document URL for an invoice
func (r *RedisCacheRepository) GetInvoiceDocumentURL(ctx context.Context, invoiceID string) (string, error) {
	var url string
	if err := r.Get(ctx, invoiceDocumentKeyPrefix+invoiceID, &url); err != nil {
		return "", err
	}
	return url, nil
}

// SetInvoiceDocumentURL remembers where an invoice document was archived
func (r *RedisCacheRepository) SetInvoiceDocumentURL(ctx context.Context, invoiceID, url string, ttl time.Duration) error {
	return r.Set(ctx, invoiceDocumentKeyPrefix+invoiceID, url, ttl)
}
