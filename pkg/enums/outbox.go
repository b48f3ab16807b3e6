package enums

import "fmt"

// OutboxAggregateType mirrors the aggregate_type Postgres enum.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateCart         OutboxAggregateType = "cart"
	AggregateNotification OutboxAggregateType = "notification"
)

func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateOrder, AggregateCart, AggregateNotification:
		return true
	}
	return false
}

// ParseOutboxAggregateType validates raw input against the enum.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	parsed := OutboxAggregateType(value)
	if !parsed.IsValid() {
		return "", fmt.Errorf("unknown aggregate type %q", value)
	}
	return parsed, nil
}

// OutboxEventType mirrors the event_type Postgres enum.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderPaid          OutboxEventType = "order_paid"
	EventOrderCanceled      OutboxEventType = "order_canceled"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventCartExpired        OutboxEventType = "cart_expired"
)

func (e OutboxEventType) IsValid() bool {
	switch e {
	case EventOrderCreated, EventOrderPaid, EventOrderCanceled,
		EventOrderStatusChanged, EventCartExpired:
		return true
	}
	return false
}

// ParseOutboxEventType validates raw input against the enum.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	parsed := OutboxEventType(value)
	if !parsed.IsValid() {
		return "", fmt.Errorf("unknown event type %q", value)
	}
	return parsed, nil
}
