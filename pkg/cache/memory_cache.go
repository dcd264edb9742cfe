// -----------------------------------------------------------------------------
// Memory Cache Driver
// -----------------------------------------------------------------------------
// Süreç içi cache. patrickmn/go-cache üzerine kuruludur; süresi dolan
// kayıtlar arka planda temizlenir.
//
// Sınırlamalar:
// - Restart'ta kaybolur
// - Tek instance içindir; çok instance'lı kurulumda invalidation Redis
//   event köprüsü ile yayılmalıdır
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const defaultMemoryTTL = 5 * time.Minute

// MemoryCache, in-memory cache implementation.
type MemoryCache struct {
	store  *gocache.Cache
	logger zerolog.Logger
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache, yeni bir memory cache oluşturur. defaultTTL <= 0 ise
// 5 dakika kullanılır; temizlik aralığı TTL'in iki katıdır.
func NewMemoryCache(defaultTTL time.Duration, logger zerolog.Logger) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = defaultMemoryTTL
	}
	return &MemoryCache{
		store:  gocache.New(defaultTTL, 2*defaultTTL),
		logger: logger,
	}
}

// Get, saklanan değerin kopyasını döner.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	b := v.([]byte)
	return append([]byte(nil), b...), true, nil
}

// Set, değerin kopyasını saklar.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.store.Delete(key)
	}
	return nil
}

func (m *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	_, ok := m.store.Get(key)
	return ok, nil
}

func (m *MemoryCache) Flush(_ context.Context) error {
	m.store.Flush()
	m.logger.Debug().Msg("memory cache temizlendi")
	return nil
}

// Stats, kayıt sayısını döner.
func (m *MemoryCache) Stats() map[string]any {
	return map[string]any{
		"driver": DriverMemory,
		"items":  m.store.ItemCount(),
	}
}
