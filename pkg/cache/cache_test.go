package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, zerolog.Nop())

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	payload := []byte(`{"id":"a"}`)
	require.NoError(t, c.Set(ctx, "a", payload, 0))
	payload[2] = 'X'

	got, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"id":"a"}`, string(got), "stored value must not alias the caller's slice")

	got[2] = 'Y'
	again, _, _ := c.Get(ctx, "a")
	assert.Equal(t, `{"id":"a"}`, string(again))

	require.NoError(t, c.Set(ctx, "b", []byte("b"), 0))
	require.NoError(t, c.Delete(ctx, "a", "b", "never-set"))

	has, err := c.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemoryCache_TTLAndFlush(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, zerolog.Nop())

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", []byte("y"), 0))
	time.Sleep(30 * time.Millisecond)

	_, found, _ := c.Get(ctx, "short")
	assert.False(t, found)
	assert.Equal(t, DriverMemory, c.Stats()["driver"])

	require.NoError(t, c.Flush(ctx))
	_, found, _ = c.Get(ctx, "long")
	assert.False(t, found)
}

func TestNew_SelectsDriver(t *testing.T) {
	c, err := New(Options{Driver: DriverMemory}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	_, err = New(Options{Driver: DriverRedis}, nil, zerolog.Nop())
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	c, err = New(Options{Driver: DriverRedis, Prefix: "t:"}, client, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)

	_, err = New(Options{Driver: "file"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestRedisCache_ReportsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	c := NewRedisCache(client, "t:", time.Minute, zerolog.Nop())
	ctx := context.Background()

	_, found, err := c.Get(ctx, "a")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Error(t, c.Set(ctx, "a", []byte("x"), 0))
	assert.NoError(t, c.Delete(ctx), "deleting nothing must not reach redis")
	assert.Equal(t, "t:", c.Stats()["prefix"])
}
