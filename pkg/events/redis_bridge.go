// -----------------------------------------------------------------------------
// Redis Pub/Sub Bridge
// -----------------------------------------------------------------------------
// Birden fazla uygulama instance'ı aynı Redis row cache'ini paylaştığında
// veya her instance kendi bellek cache'ini tuttuğunda, bir instance'taki
// veri değişikliği diğerlerine de ulaşmalıdır.
//
// RedisBridge, Bus interface'ini uygular: event'i önce yerel dispatcher'a
// iletir, ardından DataChanged event'lerini Redis kanalına yayınlar. Kanaldan
// gelen mesajlar yerel dispatcher'a aktarılır; instance'ın kendi yayınladığı
// mesajlar origin alanı ile ayıklanır.
// -----------------------------------------------------------------------------

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel, DataChanged mesajlarının yayınlandığı kanaldır.
const DefaultChannel = "orgtree:data-changed"

type envelope struct {
	Origin string       `json:"origin"`
	Event  *DataChanged `json:"event"`
}

// RedisBridge, yerel dispatcher ile Redis kanalı arasında köprüdür.
type RedisBridge struct {
	client  redis.UniversalClient
	channel string
	origin  string
	local   *Dispatcher
	logger  zerolog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

var _ Bus = (*RedisBridge)(nil)

// NewRedisBridge, köprüyü kurar. channel boşsa DefaultChannel kullanılır.
func NewRedisBridge(client redis.UniversalClient, channel string, local *Dispatcher, logger zerolog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		logger:  logger.With().Str("component", "redis_bridge").Logger(),
	}
}

// Subscribe, listener'ı yerel dispatcher'a kaydeder.
func (b *RedisBridge) Subscribe(eventName string, listener Listener) {
	b.local.Subscribe(eventName, listener)
}

// Publish, event'i yerelde işler ve DataChanged ise Redis'e yayınlar.
// Yerel listener hataları ile yayın hatası birlikte döner.
func (b *RedisBridge) Publish(ctx context.Context, event Event) error {
	localErr := b.local.Publish(ctx, event)

	change, ok := event.Payload().(*DataChanged)
	if !ok {
		return localErr
	}

	payload, err := json.Marshal(envelope{Origin: b.origin, Event: change})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Error().Err(err).Str("channel", b.channel).Msg("event yayınlanamadı")
		if localErr != nil {
			return fmt.Errorf("%w; redis publish failed: %v", localErr, err)
		}
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return localErr
}

// Start, kanala abone olur ve gelen mesajları arka planda işler.
func (b *RedisBridge) Start(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range pubsub.Channel() {
			b.handleMessage(ctx, msg.Payload)
		}
	}()

	b.logger.Info().Str("channel", b.channel).Msg("redis event köprüsü başladı")
	return nil
}

func (b *RedisBridge) handleMessage(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn().Err(err).Msg("geçersiz event mesajı")
		return
	}
	if env.Origin == b.origin || env.Event == nil {
		return
	}
	b.local.PublishAsync(ctx, env.Event)
}

// Close, aboneliği kapatır ve mesaj döngüsünün bitmesini bekler.
func (b *RedisBridge) Close() error {
	b.mu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	b.wg.Wait()
	return err
}
