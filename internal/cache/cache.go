package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/clipminer/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetJobProgress(ctx context.Context, jobID uuid.UUID, update models.ProgressUpdate, ttl time.Duration) error
	GetJobProgress(ctx context.Context, jobID uuid.UUID) (models.ProgressUpdate, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SetJobProgress stores the latest progress snapshot for a job. The snapshot
// backs progress reads for jobs whose in-memory stream has already closed.
func (c *RedisCache) SetJobProgress(ctx context.Context, jobID uuid.UUID, update models.ProgressUpdate, ttl time.Duration) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal job progress: %w", err)
	}
	return c.client.Set(ctx, JobProgressKey(jobID), data, ttl).Err()
}

func (c *RedisCache) GetJobProgress(ctx context.Context, jobID uuid.UUID) (models.ProgressUpdate, bool, error) {
	val, err := c.client.Get(ctx, JobProgressKey(jobID)).Bytes()
	if err == redis.Nil {
		return models.ProgressUpdate{}, false, nil
	}
	if err != nil {
		return models.ProgressUpdate{}, false, err
	}
	var update models.ProgressUpdate
	if err := json.Unmarshal(val, &update); err != nil {
		return models.ProgressUpdate{}, false, fmt.Errorf("unmarshal job progress: %w", err)
	}
	return update, true, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
