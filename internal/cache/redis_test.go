package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/models"
)

func newCache(t *testing.T) (*cache.TodoCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewTodoCache(rdb, time.Minute), mr
}

func TestTodoCache_RoundTrip(t *testing.T) {
	t.Parallel()
	c, mr := newCache(t)
	ctx := context.Background()

	_, ok := c.GetTodos(ctx)
	assert.False(t, ok)

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	desc := "two litres"
	want := []models.Todo{
		{ID: 1, Title: "buy milk", Description: &desc, Completed: true, CompletionDate: &at},
		{ID: 2, Title: "walk dog"},
	}
	require.NoError(t, c.SetTodos(ctx, want))
	assert.Equal(t, time.Minute, mr.TTL("todos:all"))

	got, ok := c.GetTodos(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, c.InvalidateTodos(ctx))
	_, ok = c.GetTodos(ctx)
	assert.False(t, ok)
}

func TestTodoCache_EmptyListIsAHit(t *testing.T) {
	t.Parallel()
	c, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetTodos(ctx, []models.Todo{}))
	got, ok := c.GetTodos(ctx)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestTodoCache_CorruptEntryIsAMiss(t *testing.T) {
	t.Parallel()
	c, mr := newCache(t)

	require.NoError(t, mr.Set("todos:all", "{not json"))
	_, ok := c.GetTodos(context.Background())
	assert.False(t, ok)
}

func TestTodoCache_ServerDown(t *testing.T) {
	t.Parallel()
	c, mr := newCache(t)
	mr.Close()

	_, ok := c.GetTodos(context.Background())
	assert.False(t, ok)
	assert.Error(t, c.InvalidateTodos(context.Background()))
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	rdb, err := cache.NewClient(context.Background(), &config.Config{RedisURL: "redis://" + mr.Addr() + "/0", RedisPoolSize: 5})
	require.NoError(t, err)
	defer rdb.Close()

	_, err = cache.NewClient(context.Background(), &config.Config{RedisURL: "http://nope"})
	assert.Error(t, err)
}
