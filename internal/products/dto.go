package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/money"
)

// ProductDTO represents the catalog payload returned to clients.
type ProductDTO struct {
	ID          uuid.UUID     `json:"id"`
	CategoryID  *uuid.UUID    `json:"category_id,omitempty"`
	SKU         string        `json:"sku"`
	Name        string        `json:"name"`
	Description *string       `json:"description,omitempty"`
	PriceCents  int           `json:"price_cents"`
	Price       string        `json:"price"`
	ImageURLs   []string      `json:"image_urls,omitempty"`
	IsActive    bool          `json:"is_active"`
	Inventory   *InventoryDTO `json:"inventory,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// InventoryDTO exposes stock counts.
type InventoryDTO struct {
	StockTotal    int       `json:"stock_total"`
	StockReserved int       `json:"stock_reserved"`
	Available     int       `json:"available"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProductSummary is the compact row used by list endpoints.
type ProductSummary struct {
	ID         uuid.UUID  `json:"id"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	SKU        string     `json:"sku"`
	Name       string     `json:"name"`
	PriceCents int        `json:"price_cents"`
	Price      string     `json:"price"`
	Available  int        `json:"available"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ProductListResult bundles a page of summaries with the next cursor.
type ProductListResult struct {
	Products   []ProductSummary `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(product *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:          product.ID,
		CategoryID:  product.CategoryID,
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		Price:       money.FormatUSD(product.PriceCents),
		ImageURLs:   append([]string{}, product.ImageURLs...),
		IsActive:    product.IsActive,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}

	if product.Inventory != nil {
		dto.Inventory = &InventoryDTO{
			StockTotal:    product.Inventory.StockTotal,
			StockReserved: product.Inventory.StockReserved,
			Available:     product.Inventory.Available(),
			UpdatedAt:     product.Inventory.UpdatedAt,
		}
	}

	return dto
}
