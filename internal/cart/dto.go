package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	"github.com/dvillegas/storefront-backend/pkg/money"
)

// CartLineDTO is one product entry inside the cart payload.
type CartLineDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	UnitPrice      string    `json:"unit_price"`
	TotalCents     int       `json:"total_cents"`
	Total          string    `json:"total"`
}

// CartDTO is the cart payload returned to clients.
type CartDTO struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	Status        enums.CartStatus `json:"status"`
	Lines         []CartLineDTO    `json:"lines"`
	SubtotalCents int              `json:"subtotal_cents"`
	Subtotal      string           `json:"subtotal"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func newCartDTO(cart *models.Cart, lines []LineView) *CartDTO {
	dto := &CartDTO{
		ID:            cart.ID,
		UserID:        cart.UserID,
		Status:        cart.Status,
		Lines:         make([]CartLineDTO, 0, len(lines)),
		SubtotalCents: cart.SubtotalCents,
		Subtotal:      money.FormatUSD(cart.SubtotalCents),
		CreatedAt:     cart.CreatedAt,
		UpdatedAt:     cart.UpdatedAt,
	}
	for _, line := range lines {
		totalCents := line.Quantity * line.UnitPriceCents
		dto.Lines = append(dto.Lines, CartLineDTO{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			UnitPrice:      money.FormatUSD(line.UnitPriceCents),
			TotalCents:     totalCents,
			Total:          money.FormatUSD(totalCents),
		})
	}
	return dto
}
