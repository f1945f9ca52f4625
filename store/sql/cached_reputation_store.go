package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-bookswap/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const reputationCacheKeyPrefix = "go-bookswap::reputation::v1"

// ReputationCache serves reputation reads through go-repository-cache.
// Entries are dropped by the post-commit invalidation hook whenever a
// completion or rating recalculation touches the user.
type ReputationCache struct {
	cache repositorycache.CacheService
}

func NewReputationCache(cacheService repositorycache.CacheService) (*ReputationCache, error) {
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: reputation cache service is required")
	}
	return &ReputationCache{cache: cacheService}, nil
}

// NewDefaultReputationCache builds an in-process cache service with the
// configured TTL.
func NewDefaultReputationCache(cfg core.ReputationConfig) (*ReputationCache, error) {
	config := repositorycache.DefaultConfig()
	if cfg.CacheTTL > 0 {
		config.TTL = cfg.CacheTTL
	}
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build reputation cache service: %w", err)
	}
	return NewReputationCache(service)
}

// ReputationCacheKey returns go-bookswap::reputation::v1::<user_id>.
func ReputationCacheKey(userID int64) string {
	return fmt.Sprintf("%s::%d", reputationCacheKeyPrefix, userID)
}

func (c *ReputationCache) Get(
	ctx context.Context,
	userID int64,
	fetch func(ctx context.Context) (core.UserReputation, error),
) (core.UserReputation, error) {
	if c == nil || c.cache == nil {
		return core.UserReputation{}, fmt.Errorf("sqlstore: reputation cache is not configured")
	}
	if fetch == nil {
		return core.UserReputation{}, fmt.Errorf("sqlstore: reputation fetch function is required")
	}
	return repositorycache.GetOrFetch(ctx, c.cache, ReputationCacheKey(userID), fetch)
}

func (c *ReputationCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if c == nil || c.cache == nil {
		return fmt.Errorf("sqlstore: reputation cache is not configured")
	}
	for _, userID := range userIDs {
		if err := c.cache.Delete(ctx, ReputationCacheKey(userID)); err != nil {
			return err
		}
	}
	return nil
}
