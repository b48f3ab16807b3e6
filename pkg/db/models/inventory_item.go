package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem tracks total and reserved stock per product.
// Available stock is always stock_total - stock_reserved.
type InventoryItem struct {
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	StockTotal    int       `gorm:"column:stock_total;not null;default:0"`
	StockReserved int       `gorm:"column:stock_reserved;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Available returns the purchasable quantity.
func (i InventoryItem) Available() int {
	return i.StockTotal - i.StockReserved
}
