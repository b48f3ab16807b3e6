package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	"github.com/dvillegas/storefront-backend/pkg/outbox"
	"github.com/dvillegas/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor ties one event type to the aggregate it belongs to, the
// Pub/Sub topic it ships on, and the Go type of its payload.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is an outbox row after validation and payload decoding.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry holds the descriptor for every event type the publisher
// knows how to ship.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row as permanently unshippable. The publisher
// parks such rows in the DLQ instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry wires every supported event type to its topic. Order
// lifecycle events share the orders topic; cart expiry ships on the carts
// topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, fmt.Errorf("orders topic is required")
	case cfg.CartsTopic == "":
		return nil, fmt.Errorf("carts topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	reg.addOrderEvent(cfg.OrdersTopic, enums.EventOrderCreated, func() interface{} { return &payloads.OrderCreatedEvent{} })
	reg.addOrderEvent(cfg.OrdersTopic, enums.EventOrderPaid, func() interface{} { return &payloads.OrderPaidEvent{} })
	reg.addOrderEvent(cfg.OrdersTopic, enums.EventOrderCanceled, func() interface{} { return &payloads.OrderCanceledEvent{} })
	reg.addOrderEvent(cfg.OrdersTopic, enums.EventOrderStatusChanged, func() interface{} { return &payloads.OrderStatusChangedEvent{} })
	reg.entries[enums.EventCartExpired] = EventDescriptor{
		EventType:      enums.EventCartExpired,
		AggregateType:  enums.AggregateCart,
		Topic:          cfg.CartsTopic,
		PayloadFactory: func() interface{} { return &payloads.CartExpiredEvent{} },
	}
	return reg, nil
}

func (r *EventRegistry) addOrderEvent(topic string, eventType enums.OutboxEventType, factory func() interface{}) {
	r.entries[eventType] = EventDescriptor{
		EventType:      eventType,
		AggregateType:  enums.AggregateOrder,
		Topic:          topic,
		PayloadFactory: factory,
	}
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure here is terminal, since the row itself is malformed
// and will never decode differently on retry.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, known := r.entries[event.EventType]
	switch {
	case !known:
		return nil, terminal("no descriptor for event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, terminal("event %s carries aggregate %s, want %s", event.EventType, event.AggregateType, desc.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, terminal("aggregate id is required")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, terminal("empty payload data for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, terminal("payload factory not configured for %s", event.EventType)
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func terminal(format string, args ...any) NonRetryableError {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}
