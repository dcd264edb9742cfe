// -----------------------------------------------------------------------------
// Event Dispatcher
// -----------------------------------------------------------------------------
// Süreç içi Bus implementasyonu. Event'leri kayıtlı listener'lara iletir.
//
// Kullanım:
//
//	dispatcher := events.NewDispatcher(logger)
//	defer dispatcher.ShutdownWithTimeout(5 * time.Second)
//
//	dispatcher.Subscribe(events.EventDataChanged, rowCacheListener)
//	_ = dispatcher.Publish(ctx, events.NewDataChanged("department", events.OperationUpdated, id, parentID, nil))
// -----------------------------------------------------------------------------

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher, event'leri yöneten merkezi yapıdır.
//
// Thread-safe'dir; event başına birden fazla listener kabul eder. Yerel
// değişiklikler Publish ile senkron, başka instance'lardan gelenler
// PublishAsync ile yayınlanır.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	logger    zerolog.Logger
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

var _ Bus = (*Dispatcher)(nil)

// NewDispatcher, yeni bir Dispatcher oluşturur.
//
// Kullanım bittiğinde ShutdownWithTimeout çağrılmalıdır.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		listeners: make(map[string][]Listener),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Subscribe, belirtilen event'e bir listener kaydeder.
func (d *Dispatcher) Subscribe(eventName string, listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners[eventName] = append(d.listeners[eventName], listener)
	d.logger.Debug().Str("event", eventName).Msg("listener kaydedildi")
}

// Publish, event'i tüm kayıtlı listener'lara sırayla gönderir.
//
// Bir listener hata dönerse loglanır, diğerleri çalışmaya devam eder.
// Dönen hata tüm listener hatalarının birleşimidir.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	listeners := d.listeners[event.Name()]
	d.mu.RUnlock()

	if len(listeners) == 0 {
		return nil
	}

	var errs []error
	for _, listener := range listeners {
		if err := listener.Handle(ctx, event); err != nil {
			d.logger.Error().Err(err).Str("event", event.Name()).Msg("listener hatası")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAsync, event'i goroutine'de yayınlar ve hemen döner.
// Shutdown'dan sonra gelen event'ler yok sayılır.
func (d *Dispatcher) PublishAsync(ctx context.Context, event Event) {
	select {
	case <-d.ctx.Done():
		d.logger.Warn().Str("event", event.Name()).Msg("dispatcher kapanıyor, async event yok sayıldı")
		return
	default:
	}

	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.Publish(ctx, event)
	}()
}

// ShutdownWithTimeout, yeni async event'leri reddeder ve bekleyenlerin
// tamamlanmasını en fazla timeout kadar bekler.
func (d *Dispatcher) ShutdownWithTimeout(timeout time.Duration) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Debug().Msg("event dispatcher kapatıldı")
		return nil
	case <-time.After(timeout):
		d.logger.Warn().Dur("timeout", timeout).Msg("event dispatcher shutdown zaman aşımı")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
