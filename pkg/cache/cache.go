// -----------------------------------------------------------------------------
// Cache Interface
// -----------------------------------------------------------------------------
// Tüm cache driver'ların implement etmesi gereken interface.
//
// Değerler ham byte dizisi olarak saklanır; serileştirme çağıranın
// sorumluluğundadır (row cache goccy/go-json kullanır). Böylece bellek ve
// Redis driver'ları aynı veriyi aynı biçimde döndürür.
//
// Driver'lar: Memory (patrickmn/go-cache), Redis (go-redis)
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache, byte tabanlı anahtar-değer cache sözleşmesidir.
type Cache interface {
	// Get, cache'den veri okur. Key bulunamazsa found=false döner, hata
	// vermez.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set, cache'e veri yazar. ttl = 0 ise driver varsayılanı kullanılır.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete, verilen anahtarları siler. Olmayan anahtarlar hata değildir.
	Delete(ctx context.Context, keys ...string) error

	// Has, key'in cache'de olup olmadığını kontrol eder.
	Has(ctx context.Context, key string) (bool, error)

	// Flush, bu cache'e ait tüm anahtarları temizler.
	Flush(ctx context.Context) error
}

// Stats, monitoring için opsiyonel istatistik interface'i.
type Stats interface {
	Stats() map[string]any
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Options, driver seçimi ve ortak ayarlardır.
type Options struct {
	Driver     string
	Prefix     string
	DefaultTTL time.Duration
}

// New, yapılandırmaya göre driver oluşturur. Redis driver'ı için client
// zorunludur.
func New(opts Options, client redis.UniversalClient, logger zerolog.Logger) (Cache, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryCache(opts.DefaultTTL, logger), nil
	case DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("redis cache driver requires a redis client")
		}
		return NewRedisCache(client, opts.Prefix, opts.DefaultTTL, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", opts.Driver)
	}
}
