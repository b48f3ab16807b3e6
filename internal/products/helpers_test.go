package product

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvillegas/storefront-backend/pkg/db/models"
)

func mustCreateTestProduct(t *testing.T, tx *gorm.DB, priceCents int) *models.Product {
	t.Helper()

	product := &models.Product{
		SKU:        fmt.Sprintf("sku-%s", uuid.NewString()[:8]),
		Name:       "Test Product",
		PriceCents: priceCents,
		IsActive:   true,
	}
	if err := tx.Create(product).Error; err != nil {
		t.Fatalf("create test product: %v", err)
	}
	return product
}

func mustCreateTestInventory(t *testing.T, tx *gorm.DB, productID uuid.UUID, total, reserved int) *models.InventoryItem {
	t.Helper()

	item := &models.InventoryItem{
		ProductID:     productID,
		StockTotal:    total,
		StockReserved: reserved,
	}
	if err := tx.Create(item).Error; err != nil {
		t.Fatalf("create test inventory: %v", err)
	}
	return item
}
