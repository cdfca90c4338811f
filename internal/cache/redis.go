package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

// RedisCache shares scan results across server instances through Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb, ttl: ttl}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) GetScan(ctx context.Context, imageHash string) (*models.ScanJob, bool, error) {
	raw, err := c.client.Get(ctx, scanKey(imageHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var job models.ScanJob
	if err := json.Unmarshal(raw, &job); err != nil {
		// A corrupt entry counts as a miss; it will be overwritten on the next scan.
		return nil, false, nil
	}
	return &job, true, nil
}

func (c *RedisCache) PutScan(ctx context.Context, imageHash string, job *models.ScanJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if err := c.client.Set(ctx, scanKey(imageHash), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
