package dnc

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ListingCache is a denormalized cache of positive listings keyed by
// fingerprint. Never authoritative: a miss falls through to the store, and
// every add/remove invalidates. Negative results are not cached because an
// external sync can list a number at any time.
type ListingCache interface {
	Get(ctx context.Context, tenant, fingerprint string) (Source, bool, error)
	Set(ctx context.Context, tenant, fingerprint string, source Source) error
	Invalidate(ctx context.Context, tenant, fingerprint string) error
}

const (
	listingKeyPrefix = "dnc:listed:"
	listingTTL       = 15 * time.Minute
)

// RedisListingCache backs ListingCache with Redis so a fleet of engine
// instances shares one hot set of listed numbers.
type RedisListingCache struct {
	client *redis.Client
}

func NewRedisListingCache(client *redis.Client) *RedisListingCache {
	return &RedisListingCache{client: client}
}

func listingKey(tenant, fingerprint string) string {
	return listingKeyPrefix + tenant + ":" + fingerprint
}

func (c *RedisListingCache) Get(ctx context.Context, tenant, fingerprint string) (Source, bool, error) {
	val, err := c.client.Get(ctx, listingKey(tenant, fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return Source(val), true, nil
}

func (c *RedisListingCache) Set(ctx context.Context, tenant, fingerprint string, source Source) error {
	return c.client.Set(ctx, listingKey(tenant, fingerprint), string(source), listingTTL).Err()
}

func (c *RedisListingCache) Invalidate(ctx context.Context, tenant, fingerprint string) error {
	return c.client.Del(ctx, listingKey(tenant, fingerprint)).Err()
}
