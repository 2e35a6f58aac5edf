package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/catalog/catalog/domain"
)

var _ domain.ProductRepository = (*CachedProductRepository)(nil)

const (
	allProductsKey           = "products:all"
	allProductsGenerationKey = "products:all:gen"
	productKeyPrefix         = "product:"
	DefaultProductTTL        = 5 * time.Minute
)

// CachedProductRepository puts a Redis read-through cache in front of another
// ProductRepository. Redis is best effort: any cache error is logged and the
// call falls through to the wrapped repository.
type CachedProductRepository struct {
	next   domain.ProductRepository
	client *redis.Client
	ttl    time.Duration
}

func NewCachedProductRepository(next domain.ProductRepository, client *redis.Client, ttl time.Duration) *CachedProductRepository {
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	return &CachedProductRepository{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

// Create writes through and moves the listing to a new generation. Single
// products are never updated, so their keys stay valid.
func (r *CachedProductRepository) Create(ctx context.Context, p *domain.Product) (int64, error) {
	id, err := r.next.Create(ctx, p)
	if err != nil {
		return 0, err
	}

	if err := r.client.Incr(ctx, allProductsGenerationKey).Err(); err != nil {
		log.Warn().Err(err).Str("key", allProductsGenerationKey).Msg("Failed to invalidate product cache")
	}

	return id, nil
}

// ListAll caches the listing under the generation read before the query. A
// snapshot taken before a concurrent Create is written under the old generation,
// which no later read looks at.
func (r *CachedProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	key, ok := r.listingKey(ctx)
	if !ok {
		return r.next.ListAll(ctx)
	}

	var cached []*domain.Product
	if r.get(ctx, key, &cached) {
		return cached, nil
	}

	products, err := r.next.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	r.set(ctx, key, products)
	return products, nil
}

// listingKey returns products:all:<generation>. It reports false when the
// generation cannot be read, in which case nothing may be cached.
func (r *CachedProductRepository) listingKey(ctx context.Context) (string, bool) {
	gen, err := r.client.Get(ctx, allProductsGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		gen, err = 0, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("key", allProductsGenerationKey).Msg("Failed to read product cache generation, falling back to database")
		return "", false
	}
	return allProductsKey + ":" + strconv.FormatInt(gen, 10), true
}

// GetByID caches hits only; a miss is always answered by the wrapped repository.
func (r *CachedProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)

	var cached domain.Product
	if r.get(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.set(ctx, key, p)
	return p, nil
}

func (r *CachedProductRepository) get(ctx context.Context, key string, dst any) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read product cache, falling back to database")
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding malformed product cache entry")
		return false
	}
	return true
}

func (r *CachedProductRepository) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode product cache entry")
		return
	}

	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to write product cache")
	}
}

func productKey(id int64) string {
	return productKeyPrefix + strconv.FormatInt(id, 10)
}
