package problem

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loop-dev/loop-battle/internal/battle"
)

const defaultCacheTTL = 10 * time.Minute

// SetCache is the cache contract the service relies on.
type SetCache interface {
	Get(ctx context.Context, ids []int64) ([]battle.Problem, error)
	Set(ctx context.Context, ids []int64, problems []battle.Problem) error
}

// Cache keeps resolved problem sets in Redis so room creation and match start skip Postgres.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SetCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "problemset:" + strings.Join(parts, ",")
}

// Get returns nil without error on a miss.
func (c *Cache) Get(ctx context.Context, ids []int64) ([]battle.Problem, error) {
	data, err := c.client.Get(ctx, c.key(ids)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var problems []battle.Problem
	if err := json.Unmarshal(data, &problems); err != nil {
		return nil, err
	}
	return problems, nil
}

func (c *Cache) Set(ctx context.Context, ids []int64, problems []battle.Problem) error {
	data, err := json.Marshal(problems)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(ids), data, c.ttl).Err()
}
