package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"todo-api/internal/config"
	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

const todosCacheKey = "todos:all"

// NewClient connects to Redis at cfg.RedisURL and pings it.
func NewClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.PoolSize = cfg.RedisPoolSize
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info(ctx, "Redis client initialized", "pool_size", cfg.RedisPoolSize)
	return client, nil
}

// TodoCache caches the full todo list in Redis.
type TodoCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTodoCache returns a TodoCache storing entries for ttl.
func NewTodoCache(rdb *redis.Client, ttl time.Duration) *TodoCache {
	return &TodoCache{rdb: rdb, ttl: ttl}
}

// GetTodos reads the todos list from Redis. Returns (nil, false) on miss or error.
func (c *TodoCache) GetTodos(ctx context.Context) ([]models.Todo, bool) {
	b, err := c.rdb.Get(ctx, todosCacheKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get todos failed", "error", err)
		return nil, false
	}
	var todos []models.Todo
	if err := json.Unmarshal(b, &todos); err != nil {
		logger.Debug(ctx, "Redis unmarshal todos failed", "error", err)
		return nil, false
	}
	return todos, true
}

// SetTodos writes the todos list to Redis with the configured TTL.
func (c *TodoCache) SetTodos(ctx context.Context, todos []models.Todo) error {
	b, err := json.Marshal(todos)
	if err != nil {
		return fmt.Errorf("marshal todos: %w", err)
	}
	return c.rdb.Set(ctx, todosCacheKey, b, c.ttl).Err()
}

// InvalidateTodos deletes the todos cache key so the next read goes to the database.
func (c *TodoCache) InvalidateTodos(ctx context.Context) error {
	return c.rdb.Del(ctx, todosCacheKey).Err()
}

// Ping checks the Redis connection.
func (c *TodoCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
