package rowcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biyonik/orgtree-api/pkg/auth"
	"github.com/biyonik/orgtree-api/pkg/cache"
	"github.com/biyonik/orgtree-api/pkg/events"
	"github.com/biyonik/orgtree-api/pkg/metrics"
)

type item struct {
	ID   string
	Name string
}

func (i item) GetID() string { return i.ID }

type itemDto struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Children int      `json:"children"`
	Path     []string `json:"path,omitempty"`
	CanWrite *bool    `json:"canWrite,omitempty"`
}

type fixture struct {
	cache    *RowCache[item, itemDto]
	store    cache.Cache
	metrics  *metrics.Metrics
	computed atomic.Int32
	derived  atomic.Int32
	children atomic.Int32
}

func newFixture(t *testing.T, enabled bool) *fixture {
	t.Helper()
	f := &fixture{
		store:   cache.NewMemoryCache(time.Minute, zerolog.Nop()),
		metrics: metrics.New(),
	}
	hooks := Hooks[item, itemDto]{
		Project: func(row item) itemDto { return itemDto{ID: row.ID, Name: row.Name} },
		Relations: func(_ context.Context, dto *itemDto) error {
			f.computed.Add(1)
			dto.Children = int(f.children.Load())
			return nil
		},
		Merge: func(dto *itemDto, cached itemDto) { dto.Children = cached.Children },
		Derive: func(_ context.Context, dto *itemDto) error {
			f.derived.Add(1)
			dto.Path = []string{"root", dto.Name}
			return nil
		},
		Permissions: func(_ context.Context, dto *itemDto, r *auth.Requester) {
			can := r.Has(auth.PermissionDepartmentWrite)
			dto.CanWrite = &can
		},
		Strip: func(dto *itemDto) {
			dto.Path = nil
			dto.CanWrite = nil
		},
	}
	f.cache = New(f.store, hooks, Options{Entity: "item", Enabled: enabled, Logger: zerolog.Nop(), Metrics: f.metrics})
	return f
}

func writer() *auth.Requester {
	return &auth.Requester{ID: "u1", Permissions: []string{auth.PermissionDepartmentWrite}}
}

func TestGetRowDto_MissThenHitAreIdentical(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	row := item{ID: "a", Name: "Alpha"}

	miss, err := f.cache.GetRowDto(ctx, row, writer())
	require.NoError(t, err)
	hit, err := f.cache.GetRowDto(ctx, row, writer())
	require.NoError(t, err)

	assert.Equal(t, miss, hit)
	assert.Equal(t, []string{"root", "Alpha"}, hit.Path)
	assert.Equal(t, int32(1), f.computed.Load())
	assert.Equal(t, int32(2), f.derived.Load())
	assert.Equal(t, 1.0, counter(t, f.metrics, "orgtree_row_cache_hits_total"))
}

func TestGetRowDto_HitTakesOwnColumnsFromFreshRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.children.Store(3)

	_, err := f.cache.GetRowDto(ctx, item{ID: "a", Name: "Alpha"}, nil)
	require.NoError(t, err)

	// Kayıt yeniden adlandırıldı ama girdi henüz silinmedi.
	f.children.Store(7)
	hit, err := f.cache.GetRowDto(ctx, item{ID: "a", Name: "Beta"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Beta", hit.Name)
	assert.Equal(t, []string{"root", "Beta"}, hit.Path)
	assert.Equal(t, 3, hit.Children)
	assert.Equal(t, int32(1), f.computed.Load())
}

func TestGetRowDto_DerivedFieldsAreNeverStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	dto, err := f.cache.GetRowDto(ctx, item{ID: "a", Name: "Alpha"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"root", "Alpha"}, dto.Path)

	raw, found, err := f.store.Get(ctx, Key("item", "a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, string(raw), "path")
	assert.NotContains(t, string(raw), "root")
}

func TestNew_RelationsWithoutMergePanics(t *testing.T) {
	assert.Panics(t, func() {
		New(cache.NewMemoryCache(time.Minute, zerolog.Nop()), Hooks[item, itemDto]{
			Project:   func(row item) itemDto { return itemDto{ID: row.ID} },
			Relations: func(context.Context, *itemDto) error { return nil },
		}, Options{Entity: "item", Enabled: true, Logger: zerolog.Nop()})
	})
}

func TestGetRowDto_PermissionsAreNeverStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	row := item{ID: "a", Name: "Alpha"}

	dto, err := f.cache.GetRowDto(ctx, row, writer())
	require.NoError(t, err)
	require.NotNil(t, dto.CanWrite)
	assert.True(t, *dto.CanWrite)

	raw, found, err := f.store.Get(ctx, Key("item", "a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, string(raw), "canWrite")

	reader, err := f.cache.GetRowDto(ctx, row, &auth.Requester{ID: "u2"})
	require.NoError(t, err)
	require.NotNil(t, reader.CanWrite)
	assert.False(t, *reader.CanWrite)
}

func TestGetRowDto_PassThroughWithoutID(t *testing.T) {
	f := newFixture(t, true)

	dto, err := f.cache.GetRowDto(context.Background(), item{Name: "group"}, writer())
	require.NoError(t, err)
	assert.Equal(t, itemDto{Name: "group"}, dto)
	assert.Zero(t, f.computed.Load())
}

func TestGetRowDto_DisabledComputesEveryTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	row := item{ID: "a", Name: "Alpha"}

	for i := 0; i < 3; i++ {
		_, err := f.cache.GetRowDto(ctx, row, writer())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), f.computed.Load())
	assert.Equal(t, int32(3), f.derived.Load())

	has, err := f.store.Has(ctx, Key("item", "a"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGetRowDto_RelationErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	c := New(cache.NewMemoryCache(time.Minute, zerolog.Nop()), Hooks[item, itemDto]{
		Project:   func(row item) itemDto { return itemDto{ID: row.ID} },
		Relations: func(context.Context, *itemDto) error { return boom },
		Merge:     func(*itemDto, itemDto) {},
	}, Options{Entity: "item", Enabled: true, Logger: zerolog.Nop()})

	_, err := c.GetRowDto(context.Background(), item{ID: "a"}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestGetRowDto_ConcurrentMissesComputeOnce(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	var computed atomic.Int32

	c := New(cache.NewMemoryCache(time.Minute, zerolog.Nop()), Hooks[item, itemDto]{
		Project: func(row item) itemDto { return itemDto{ID: row.ID} },
		Relations: func(context.Context, *itemDto) error {
			computed.Add(1)
			<-release
			return nil
		},
		Merge: func(*itemDto, itemDto) {},
	}, Options{Entity: "item", Enabled: true, Logger: zerolog.Nop()})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetRowDto(ctx, item{ID: "a"}, nil)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), computed.Load())
}

func TestListen_EvictsRowAndParent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	bus := events.NewDispatcher(zerolog.Nop())
	f.cache.Listen(bus)

	for _, id := range []string{"child", "parent", "other"} {
		_, err := f.cache.GetRowDto(ctx, item{ID: id, Name: id}, nil)
		require.NoError(t, err)
	}

	// Başka bir entity'nin olayı hiçbir şeyi silmez.
	require.NoError(t, bus.Publish(ctx, events.NewDataChanged("venue", events.OperationUpdated, "child", "parent", nil)))
	has, _ := f.store.Has(ctx, Key("item", "child"))
	assert.True(t, has)

	require.NoError(t, bus.Publish(ctx, events.NewDataChanged("item", events.OperationUpdated, "child", "parent", nil)))

	for id, want := range map[string]bool{"child": false, "parent": false, "other": true} {
		has, err := f.store.Has(ctx, Key("item", id))
		require.NoError(t, err)
		assert.Equal(t, want, has, id)
	}
	assert.Equal(t, 2.0, counter(t, f.metrics, "orgtree_row_cache_evictions_total"))

	require.NoError(t, f.cache.Invalidate(ctx, ""))
	assert.Equal(t, 2.0, counter(t, f.metrics, "orgtree_row_cache_evictions_total"))
}

// counter, registry'deki bir sayacın tüm etiketler üzerindeki toplamıdır.
func counter(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestKey(t *testing.T) {
	assert.Equal(t, "row:department:42", Key("department", "42"))
}
