package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bcafe/restaurant-service/internal/models"

	"github.com/redis/go-redis/v9"
)

// MenuCache is a read-through cache for menu listings. A nil *MenuCache is
// valid and behaves as a permanent miss, so callers never branch on whether
// caching is configured.
//
// Invalidation bumps a generation counter instead of scanning for keys;
// stale entries simply age out under old generations.
type MenuCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewMenuCache(client *redis.Client, ttl time.Duration) *MenuCache {
	return &MenuCache{Client: client, TTL: ttl}
}

const genKey = "menu:gen"

func (c *MenuCache) listKey(ctx context.Context, categoryID string, specialOnly bool) (string, error) {
	gen, err := c.Client.Get(ctx, genKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	if categoryID == "" {
		categoryID = "all"
	}
	return fmt.Sprintf("menu:%d:%s:%t", gen, categoryID, specialOnly), nil
}

// GetMenu returns the cached listing for the filter, or ok=false on a miss.
// Redis errors are reported as misses with the error attached so the caller
// can log and fall through to the database.
func (c *MenuCache) GetMenu(ctx context.Context, categoryID string, specialOnly bool) ([]models.MenuItem, bool, error) {
	if c == nil || c.Client == nil {
		return nil, false, nil
	}
	key, err := c.listKey(ctx, categoryID, specialOnly)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var items []models.MenuItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (c *MenuCache) SetMenu(ctx context.Context, categoryID string, specialOnly bool, items []models.MenuItem) error {
	if c == nil || c.Client == nil {
		return nil
	}
	key, err := c.listKey(ctx, categoryID, specialOnly)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, raw, c.TTL).Err()
}

// Invalidate drops every cached listing. Called after any write that can
// change a menu row, including stock movements from orders.
func (c *MenuCache) Invalidate(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Incr(ctx, genKey).Err()
}
