package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is a sellable catalog item. Stock counts live on InventoryItem.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID  *uuid.UUID     `gorm:"column:category_id;type:uuid"`
	SKU         string         `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Name        string         `gorm:"column:name;type:text;not null"`
	Description *string        `gorm:"column:description;type:text"`
	PriceCents  int            `gorm:"column:price_cents;not null"`
	ImageURLs   pq.StringArray `gorm:"column:image_urls;type:text[]"`
	IsActive    bool           `gorm:"column:is_active;not null;default:true"`
	Inventory   *InventoryItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
