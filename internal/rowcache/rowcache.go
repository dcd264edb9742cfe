// -----------------------------------------------------------------------------
// Row Cache
// -----------------------------------------------------------------------------
// Izgaraya dönen her satırın ilişki alanları satır id'si ile önbelleğe
// alınır. Önbellekte yalnızca satırın kendisi ve doğrudan çocukları
// değiştiğinde eskiyen alanlar tutulur; geçersiz kılma da yalnızca bu iki
// anahtarı siler (satırın kendisi ve ebeveyni).
//
// Her okumada DTO taze satırdan kurulur:
//
//	Project(row) → Merge(önbellekteki ilişkiler) → Derive → Permissions
//
// Atalardan ya da başka satırlardan okunan alanlar (Derive) ve isteği
// yapana özel alanlar (Permissions) hiçbir zaman yazılmaz.
//
// Akış:
//   - id yok        → satır ilişkisiz DTO'ya çevrilip olduğu gibi döner
//   - kapalı        → her seferinde hesaplanır
//   - hit           → payload decode edilir, taze projeksiyona birleştirilir
//   - miss          → ilişkiler hesaplanır, Strip uygulanır, payload yazılır
//
// Aynı anahtar için eşzamanlı miss'ler tek hesaplamaya indirgenir
// (singleflight). Hit ve miss aynı payload'dan birleştirildiği için birebir
// aynı değeri döner.
// -----------------------------------------------------------------------------

package rowcache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/biyonik/orgtree-api/pkg/auth"
	"github.com/biyonik/orgtree-api/pkg/cache"
	"github.com/biyonik/orgtree-api/pkg/events"
	"github.com/biyonik/orgtree-api/pkg/metrics"
)

// DefaultTTL, önbellek girdilerinin varsayılan ömrüdür.
const DefaultTTL = 10 * time.Minute

// Row, önbelleğe alınabilen satır sözleşmesidir.
type Row interface {
	GetID() string
}

// Hooks, entity'ye özgü DTO üretim adımlarıdır.
type Hooks[R Row, D any] struct {
	// Project, satırı ilişkiler olmadan DTO'ya çevirir. Zorunludur.
	Project func(row R) D

	// Relations, DTO'nun önbelleğe yazılan ilişki alanlarını doldurur.
	// Yalnızca satırın kendisine ve doğrudan çocuklarına bağlı alanlar
	// burada hesaplanmalıdır.
	Relations func(ctx context.Context, dto *D) error

	// Merge, önbellekteki ilişki alanlarını taze projeksiyona kopyalar.
	// Relations verilmişse zorunludur.
	Merge func(dto *D, cached D)

	// Derive, her okumada hesaplanan ve önbelleğe yazılmayan alanları
	// doldurur (ata adları gibi).
	Derive func(ctx context.Context, dto *D) error

	// Permissions, isteği yapana özel alanları doldurur.
	Permissions func(ctx context.Context, dto *D, requester *auth.Requester)

	// Strip, önbelleğe yazılmayan alanları temizler. Yazmadan önce çağrılır.
	Strip func(dto *D)
}

// Options, row cache ayarlarıdır.
type Options struct {
	Entity  string
	Enabled bool
	TTL     time.Duration
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// RowCache, R satırlarından D DTO'ları üreten önbellektir.
type RowCache[R Row, D any] struct {
	store   cache.Cache
	hooks   Hooks[R, D]
	entity  string
	enabled bool
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

// New, store üzerinde bir row cache kurar. Project zorunludur; Relations
// verilmişse Merge de verilmelidir.
func New[R Row, D any](store cache.Cache, hooks Hooks[R, D], opts Options) *RowCache[R, D] {
	if hooks.Project == nil {
		panic("rowcache: Project hook is required")
	}
	if hooks.Relations != nil && hooks.Merge == nil {
		panic("rowcache: Merge hook is required with Relations")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &RowCache[R, D]{
		store:   store,
		hooks:   hooks,
		entity:  opts.Entity,
		enabled: opts.Enabled && store != nil,
		ttl:     opts.TTL,
		logger:  opts.Logger.With().Str("component", "rowcache").Str("entity", opts.Entity).Logger(),
		metrics: opts.Metrics,
	}
}

// Key, bir satırın önbellek anahtarıdır.
func Key(entity, id string) string {
	return "row:" + entity + ":" + id
}

// GetRowDto, satırın DTO'sunu döner.
func (c *RowCache[R, D]) GetRowDto(ctx context.Context, row R, requester *auth.Requester) (D, error) {
	id := row.GetID()
	if id == "" {
		return c.hooks.Project(row), nil
	}

	if !c.enabled {
		dto, err := c.compute(ctx, row)
		if err != nil {
			var zero D
			return zero, err
		}
		return c.finish(ctx, dto, requester)
	}

	key := Key(c.entity, id)
	payload, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("önbellek okunamadı, yeniden hesaplanıyor")
		found = false
	}

	if found {
		c.metrics.CacheHit(c.entity)
	} else {
		c.metrics.CacheMiss(c.entity)
		v, err, _ := c.group.Do(key, func() (any, error) {
			return c.fill(ctx, key, row)
		})
		if err != nil {
			var zero D
			return zero, err
		}
		payload = v.([]byte)
	}

	var cached D
	if err := json.Unmarshal(payload, &cached); err != nil {
		var zero D
		return zero, err
	}
	dto := c.hooks.Project(row)
	if c.hooks.Merge != nil {
		c.hooks.Merge(&dto, cached)
	}
	return c.finish(ctx, dto, requester)
}

// finish, önbelleğe girmeyen alanları doldurur.
func (c *RowCache[R, D]) finish(ctx context.Context, dto D, requester *auth.Requester) (D, error) {
	if c.hooks.Derive != nil {
		if err := c.hooks.Derive(ctx, &dto); err != nil {
			var zero D
			return zero, err
		}
	}
	if c.hooks.Permissions != nil {
		c.hooks.Permissions(ctx, &dto, requester)
	}
	return dto, nil
}

// GetRowDtos, satırları sırası korunarak DTO'ya çevirir.
func (c *RowCache[R, D]) GetRowDtos(ctx context.Context, rows []R, requester *auth.Requester) ([]D, error) {
	out := make([]D, 0, len(rows))
	for _, row := range rows {
		dto, err := c.GetRowDto(ctx, row, requester)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func (c *RowCache[R, D]) compute(ctx context.Context, row R) (D, error) {
	dto := c.hooks.Project(row)
	if c.hooks.Relations != nil {
		if err := c.hooks.Relations(ctx, &dto); err != nil {
			var zero D
			return zero, err
		}
	}
	if c.hooks.Strip != nil {
		c.hooks.Strip(&dto)
	}
	return dto, nil
}

// fill, DTO'yu hesaplayıp serileştirir ve yazar. Yazma hatası okumayı
// bozmaz.
func (c *RowCache[R, D]) fill(ctx context.Context, key string, row R) ([]byte, error) {
	dto, err := c.compute(ctx, row)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("önbelleğe yazılamadı")
	}
	return payload, nil
}

// Invalidate, verilen id'lerin girdilerini siler. Boş id'ler atlanır.
func (c *RowCache[R, D]) Invalidate(ctx context.Context, ids ...string) error {
	if c.store == nil {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			keys = append(keys, Key(c.entity, id))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return err
	}
	c.metrics.CacheEvicted(c.entity, len(keys))
	return nil
}

// Listen, bu entity'nin data.changed olaylarında satırı ve ebeveynini
// önbellekten siler.
func (c *RowCache[R, D]) Listen(bus events.Bus) {
	handler := events.ListenerFunc(func(ctx context.Context, e events.Event) error {
		change := e.Payload().(*events.DataChanged)
		if err := c.Invalidate(ctx, change.ID, change.ParentID); err != nil {
			c.logger.Warn().Err(err).Str("id", change.ID).Msg("önbellek girdisi silinemedi")
			return err
		}
		c.logger.Debug().
			Str("id", change.ID).
			Str("operation", string(change.Operation)).
			Msg("önbellek girdisi silindi")
		return nil
	})
	bus.Subscribe(events.EventDataChanged, events.NewConditionalListener(handler, events.ForEntity(c.entity)))
}
