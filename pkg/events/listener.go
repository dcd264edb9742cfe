// -----------------------------------------------------------------------------
// Event Listeners
// -----------------------------------------------------------------------------
// Listener, bir event gerçekleştiğinde çalışacak kod bloğudur.
//
// Örnek:
//
//	bus.Subscribe(events.EventDataChanged, events.ListenerFunc(func(ctx context.Context, e events.Event) error {
//	    change := e.Payload().(*events.DataChanged)
//	    return cache.Delete(ctx, change.ID)
//	}))
// -----------------------------------------------------------------------------

package events

import "context"

// Listener, event'leri dinleyen ve işleyen interface.
//
// Handle error dönerse dispatcher bu hatayı loglar ancak diğer
// listener'ların çalışmasını engellemez.
type Listener interface {
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc, fonksiyonları Listener interface'ine çevirir.
type ListenerFunc func(ctx context.Context, event Event) error

// Handle, ListenerFunc'ı Listener interface'ine uyumlu hale getirir.
func (f ListenerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// -----------------------------------------------------------------------------
// Conditional Listener
// -----------------------------------------------------------------------------

// ConditionalListener, sadece koşul sağlandığında çalışan listener.
type ConditionalListener struct {
	listener  Listener
	condition func(Event) bool
}

// NewConditionalListener, yeni bir ConditionalListener oluşturur.
func NewConditionalListener(listener Listener, condition func(Event) bool) *ConditionalListener {
	return &ConditionalListener{listener: listener, condition: condition}
}

// Handle, koşul sağlanıyorsa listener'ı çalıştırır.
func (c *ConditionalListener) Handle(ctx context.Context, event Event) error {
	if c.condition(event) {
		return c.listener.Handle(ctx, event)
	}
	return nil
}

// ForEntity, yalnızca verilen entity tipine ait DataChanged event'lerini
// geçiren koşuldur.
func ForEntity(entityType string) func(Event) bool {
	return func(e Event) bool {
		change, ok := e.Payload().(*DataChanged)
		return ok && change.EntityType == entityType
	}
}
