// -----------------------------------------------------------------------------
// Redis Cache Driver
// -----------------------------------------------------------------------------
// Redis tabanlı cache. Birden fazla instance aynı row cache'ini paylaşır.
//
// Özellikler:
// - Key prefix (namespace)
// - TTL desteği
// - Prefix'e göre güvenli Flush (SCAN + DEL)
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCache, Redis-based cache implementation.
type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	logger     zerolog.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache, yeni bir Redis cache oluşturur.
//
// Örnek:
//
//	c := cache.NewRedisCache(client, "orgtree:", 10*time.Minute, log)
//	_ = c.Set(ctx, "row:department:42", payload, 0)
//	// Gerçek key: "orgtree:row:department:42"
func NewRedisCache(client redis.UniversalClient, prefix string, defaultTTL time.Duration, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

func (r *RedisCache) prefixKey(key string) string {
	return r.prefix + key
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("key", r.prefixKey(key)).Msg("redis get hatası")
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.prefixKey(key), value, ttl).Err(); err != nil {
		r.logger.Error().Err(err).Str("key", r.prefixKey(key)).Msg("redis set hatası")
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.prefixKey(key)
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefixKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

// Flush, prefix'e ait anahtarları siler. Prefix boşsa tüm veritabanı
// temizlenir.
func (r *RedisCache) Flush(ctx context.Context) error {
	if r.prefix == "" {
		if err := r.client.FlushDB(ctx).Err(); err != nil {
			return fmt.Errorf("redis flushdb failed: %w", err)
		}
		r.logger.Warn().Msg("redis veritabanı tamamen temizlendi")
		return nil
	}

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis flush failed: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis flush failed: %w", err)
		}
	}
	return nil
}

func (r *RedisCache) Stats() map[string]any {
	s := r.client.PoolStats()
	return map[string]any{
		"driver":      DriverRedis,
		"prefix":      r.prefix,
		"hits":        s.Hits,
		"misses":      s.Misses,
		"total_conns": s.TotalConns,
		"idle_conns":  s.IdleConns,
	}
}
