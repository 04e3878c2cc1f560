package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/repository"
)

type progressCache struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewProgressCache creates a Redis-backed cache of group progress projections.
func NewProgressCache(client *redislib.Client, ttl time.Duration) repository.ProgressCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &progressCache{
		client: client,
		prefix: "group_progress:",
		ttl:    ttl,
	}
}

func (c *progressCache) Get(ctx context.Context, taskID string) (*domain.GroupProgress, bool, error) {
	result, err := c.client.Get(ctx, c.key(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var progress domain.GroupProgress
	if err := json.Unmarshal(result, &progress); err != nil {
		return nil, false, err
	}
	return &progress, true, nil
}

func (c *progressCache) Set(ctx context.Context, taskID string, progress domain.GroupProgress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(taskID), payload, c.ttl).Err()
}

func (c *progressCache) Invalidate(ctx context.Context, taskID string) error {
	return c.client.Del(ctx, c.key(taskID)).Err()
}

func (c *progressCache) key(taskID string) string {
	return fmt.Sprintf("%s%s", c.prefix, taskID)
}
