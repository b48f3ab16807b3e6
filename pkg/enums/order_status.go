package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool {
	switch o {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCanceled:
		return true
	}
	return false
}

// ParseOrderStatus validates raw input against the order status enum.
func ParseOrderStatus(value string) (OrderStatus, error) {
	parsed := OrderStatus(value)
	if !parsed.IsValid() {
		return "", fmt.Errorf("unknown order status %q", value)
	}
	return parsed, nil
}
