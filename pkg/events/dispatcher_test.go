// -----------------------------------------------------------------------------
// Event Dispatcher Tests
// -----------------------------------------------------------------------------
// Testler:
// - Senkron yayın ve hata birleştirme
// - Entity filtresi
// - Async yayın ve shutdown
// - Eşzamanlı yayın
// - Redis köprüsünün yerel teslimatı ve origin ayıklaması
// -----------------------------------------------------------------------------

package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingListener, test için basit listener.
type countingListener struct {
	handled atomic.Int32
	delay   time.Duration
	err     error
}

func (l *countingListener) Handle(ctx context.Context, event Event) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.handled.Add(1)
	return l.err
}

func (l *countingListener) count() int { return int(l.handled.Load()) }

func TestDispatcher_PublishReachesEveryListener(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	boom := errors.New("boom")
	first := &countingListener{err: boom}
	second := &countingListener{}
	d.Subscribe(EventDataChanged, first)
	d.Subscribe(EventDataChanged, second)

	err := d.Publish(context.Background(), NewDataChanged("department", OperationCreated, "a", "", nil))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count(), "a failing listener must not stop the others")
}

func TestDispatcher_NoListeners(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	assert.NoError(t, d.Publish(context.Background(), NewBaseEvent("nothing", nil)))
}

func TestConditionalListener_ForEntity(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	inner := &countingListener{}
	d.Subscribe(EventDataChanged, NewConditionalListener(inner, ForEntity("department")))

	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, NewDataChanged("department", OperationUpdated, "a", "", nil)))
	require.NoError(t, d.Publish(ctx, NewDataChanged("position", OperationUpdated, "a", "", nil)))

	assert.Equal(t, 1, inner.count())
}

func TestDispatcher_AsyncAndShutdown(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	slow := &countingListener{delay: 20 * time.Millisecond}
	d.Subscribe("slow", slow)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		d.PublishAsync(ctx, NewBaseEvent("slow", i))
	}
	cancel()

	require.NoError(t, d.ShutdownWithTimeout(time.Second))
	assert.Equal(t, 5, slow.count(), "shutdown must wait for pending async events")

	d.PublishAsync(context.Background(), NewBaseEvent("slow", nil))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 5, slow.count(), "events after shutdown must be ignored")
}

func TestDispatcher_ShutdownWithTimeout(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	d.Subscribe("slow", &countingListener{delay: 200 * time.Millisecond})

	d.PublishAsync(context.Background(), NewBaseEvent("slow", nil))
	assert.Error(t, d.ShutdownWithTimeout(10*time.Millisecond))
}

func TestDispatcher_ConcurrentPublish(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	listener := &countingListener{}
	d.Subscribe("concurrent", listener)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Publish(context.Background(), NewBaseEvent("concurrent", nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, listener.count())
}

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
}

func TestRedisBridge_DeliversLocallyWhenRedisIsDown(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()

	local := NewDispatcher(zerolog.Nop())
	listener := &countingListener{}
	bridge := NewRedisBridge(client, "", local, zerolog.Nop())
	bridge.Subscribe(EventDataChanged, listener)

	err := bridge.Publish(context.Background(), NewDataChanged("department", OperationDeleted, "a", "p", nil))

	assert.Error(t, err)
	assert.Equal(t, 1, listener.count())
	assert.NoError(t, bridge.Close())
}

func TestRedisBridge_HandleMessageSkipsOwnOrigin(t *testing.T) {
	local := NewDispatcher(zerolog.Nop())

	var got []*DataChanged
	local.Subscribe(EventDataChanged, ListenerFunc(func(ctx context.Context, e Event) error {
		got = append(got, e.Payload().(*DataChanged))
		return nil
	}))
	bridge := NewRedisBridge(unreachableRedis(), "test", local, zerolog.Nop())

	encode := func(origin string) string {
		b, err := json.Marshal(envelope{Origin: origin, Event: NewDataChanged("department", OperationUpdated, "a", "p", nil)})
		require.NoError(t, err)
		return string(b)
	}

	ctx := context.Background()
	bridge.handleMessage(ctx, encode(bridge.origin))
	bridge.handleMessage(ctx, "not json")
	bridge.handleMessage(ctx, encode("other-instance"))

	// Uzak event'ler async teslim edilir; shutdown bekleyenleri tamamlar.
	require.NoError(t, local.ShutdownWithTimeout(time.Second))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "p", got[0].ParentID)
	assert.Equal(t, OperationUpdated, got[0].Operation)
}
