// -----------------------------------------------------------------------------
// Event System - Core Interfaces
// -----------------------------------------------------------------------------
// Veri değişikliklerini (oluşturma, güncelleme, silme) ilgilenen bileşenlere
// taşıyan olay yapıları. Row cache, bu olaylar üzerinden invalidation yapar.
//
// Bus, repository'lere açıkça enjekte edilir; süreç içi Dispatcher ve çoklu
// instance için RedisBridge aynı interface'i uygular.
// -----------------------------------------------------------------------------

package events

import (
	"context"
	"time"
)

// Event, tüm event'lerin implement etmesi gereken interface.
type Event interface {
	// Name, event'in benzersiz adını döndürür. Örnek: "data.changed"
	Name() string

	// OccurredAt, event'in gerçekleşme zamanını döndürür.
	OccurredAt() time.Time

	// Payload, event ile taşınan veriyi döndürür.
	Payload() any
}

// Bus, event yayınlama ve dinleme sözleşmesidir.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventName string, listener Listener)
}

// BaseEvent, basit event'ler için temel yapıdır.
type BaseEvent struct {
	name       string
	occurredAt time.Time
	payload    any
}

// NewBaseEvent, yeni bir BaseEvent oluşturur.
func NewBaseEvent(name string, payload any) *BaseEvent {
	return &BaseEvent{
		name:       name,
		occurredAt: time.Now().UTC(),
		payload:    payload,
	}
}

func (e *BaseEvent) Name() string          { return e.name }
func (e *BaseEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *BaseEvent) Payload() any          { return e.payload }

// -----------------------------------------------------------------------------
// Data Change Events
// -----------------------------------------------------------------------------

const EventDataChanged = "data.changed"

// Operation, veri değişikliğinin türüdür.
type Operation string

const (
	OperationCreated Operation = "created"
	OperationUpdated Operation = "updated"
	OperationDeleted Operation = "deleted"
)

// DataChanged, bir entity satırının değiştiğini bildirir. ParentID kök
// kayıtlar ve hiyerarşik olmayan entity'ler için boştur.
type DataChanged struct {
	EntityType string    `json:"entityType"`
	Operation  Operation `json:"operation"`
	ID         string    `json:"id"`
	ParentID   string    `json:"parentId,omitempty"`
	Data       any       `json:"data,omitempty"`
	At         time.Time `json:"at"`
}

// NewDataChanged creates a data change event stamped with the current time.
func NewDataChanged(entityType string, op Operation, id, parentID string, data any) *DataChanged {
	return &DataChanged{
		EntityType: entityType,
		Operation:  op,
		ID:         id,
		ParentID:   parentID,
		Data:       data,
		At:         time.Now().UTC(),
	}
}

func (e *DataChanged) Name() string          { return EventDataChanged }
func (e *DataChanged) OccurredAt() time.Time { return e.At }
func (e *DataChanged) Payload() any          { return e }
