package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

const keyPrefix = "trk:link:"

// LinkCache keeps code lookups for the redirect path in Redis.
// Counters in a cached entry go stale; only id, target and active flag are read.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	return &LinkCache{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *LinkCache) Get(ctx context.Context, code string) (*domain.TrackingLink, error) {
	data, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var link domain.TrackingLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *LinkCache) Set(ctx context.Context, link *domain.TrackingLink) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+link.Code, data, c.ttl).Err()
}

func (c *LinkCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, keyPrefix+code).Err()
}

var _ ports.LinkCache = (*LinkCache)(nil)
