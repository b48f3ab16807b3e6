package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	"github.com/dvillegas/storefront-backend/pkg/money"
)

// OrderItemDTO is a single snapshotted line on an order.
type OrderItemDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	UnitPrice      string    `json:"unit_price"`
	TotalCents     int       `json:"total_cents"`
	Total          string    `json:"total"`
}

// PaymentDTO exposes the settlement record attached to a paid order.
type PaymentDTO struct {
	ID                uuid.UUID           `json:"id"`
	Status            enums.PaymentStatus `json:"status"`
	AmountCents       int                 `json:"amount_cents"`
	Amount            string              `json:"amount"`
	Provider          string              `json:"provider"`
	ProviderPaymentID *string             `json:"provider_payment_id,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// OrderDTO is the full order payload returned to clients.
type OrderDTO struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"user_id"`
	CartID     uuid.UUID         `json:"cart_id"`
	Status     enums.OrderStatus `json:"status"`
	Items      []OrderItemDTO    `json:"items"`
	TotalCents int               `json:"total_cents"`
	Total      string            `json:"total"`
	Payment    *PaymentDTO       `json:"payment,omitempty"`
	PaidAt     *time.Time        `json:"paid_at,omitempty"`
	CanceledAt *time.Time        `json:"canceled_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// OrderSummary is the compact row returned by the order list.
type OrderSummary struct {
	ID         uuid.UUID         `json:"id"`
	Status     enums.OrderStatus `json:"status"`
	TotalCents int               `json:"total_cents"`
	Total      string            `json:"total"`
	ItemCount  int               `json:"item_count"`
	CreatedAt  time.Time         `json:"created_at"`
}

// OrderListResult is a cursor page of order summaries.
type OrderListResult struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func newOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:         order.ID,
		UserID:     order.UserID,
		CartID:     order.CartID,
		Status:     order.Status,
		Items:      make([]OrderItemDTO, 0, len(order.Items)),
		TotalCents: order.TotalCents,
		Total:      money.FormatUSD(order.TotalCents),
		PaidAt:     order.PaidAt,
		CanceledAt: order.CanceledAt,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			UnitPrice:      money.FormatUSD(item.UnitPriceCents),
			TotalCents:     item.TotalCents,
			Total:          money.FormatUSD(item.TotalCents),
		})
	}
	if order.Payment != nil {
		dto.Payment = &PaymentDTO{
			ID:                order.Payment.ID,
			Status:            order.Payment.Status,
			AmountCents:       order.Payment.AmountCents,
			Amount:            money.FormatUSD(order.Payment.AmountCents),
			Provider:          order.Payment.Provider,
			ProviderPaymentID: order.Payment.ProviderPaymentID,
			CreatedAt:         order.Payment.CreatedAt,
		}
	}
	return dto
}
