package events

import (
	"time"

	"github.com/asaskevich/EventBus"
)

// Topic names for domain events.
const (
	TopicMessageReceived = "message.received"
	TopicMessageSent     = "message.sent"
	TopicVehicleCreated  = "vehicle.created"
	TopicVehicleUpdated  = "vehicle.updated"
	TopicAccountStatus   = "account.status"
)

// AllTopics is the full set of topics a sink can subscribe to.
var AllTopics = []string{
	TopicMessageReceived,
	TopicMessageSent,
	TopicVehicleCreated,
	TopicVehicleUpdated,
	TopicAccountStatus,
}

// Event is a single domain occurrence fanned out to in-process subscribers
// and, from there, to tenant webhooks and the broker mirror.
type Event struct {
	Name      string      `json:"event"`
	TenantID  string      `json:"tenantId"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Bus wraps the process-wide event bus so publishers never deal with the
// untyped subscribe/publish surface directly.
type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

// Publish fans the event out to all subscribers of the named topic.
func (b *Bus) Publish(name, tenantID string, data interface{}) {
	b.bus.Publish(name, Event{
		Name:      name,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// Subscribe registers a synchronous handler for one topic. Handlers must be
// fast; slow sinks should hand work to their own pool.
func (b *Bus) Subscribe(name string, fn func(Event)) error {
	return b.bus.Subscribe(name, fn)
}

// SubscribeAll registers the handler on every domain topic.
func (b *Bus) SubscribeAll(fn func(Event)) error {
	for _, topic := range AllTopics {
		if err := b.bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}
