package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals a cart was converted into a pending order.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	CartID     uuid.UUID `json:"cart_id"`
	TotalCents int       `json:"total_cents"`
	ItemCount  int       `json:"item_count"`
}

// OrderPaidEvent is emitted when payment settles and stock is confirmed.
type OrderPaidEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int       `json:"amount_cents"`
	PaidAt      time.Time `json:"paid_at"`
}

// OrderCanceledEvent is emitted whenever an order is canceled.
type OrderCanceledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	UserID         uuid.UUID         `json:"user_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	CanceledAt     time.Time         `json:"canceled_at"`
}

// OrderStatusChangedEvent reports fulfillment transitions (shipped, delivered).
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// CartExpiredEvent is emitted by the sweep when an abandoned cart expires.
type CartExpiredEvent struct {
	CartID        uuid.UUID `json:"cart_id"`
	UserID        uuid.UUID `json:"user_id"`
	ReleasedLines int       `json:"released_lines"`
	ExpiredAt     time.Time `json:"expired_at"`
}
