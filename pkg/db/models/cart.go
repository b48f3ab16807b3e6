package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/enums"
)

// Cart holds a user's in-progress selection. At most one ACTIVE cart per user.
type Cart struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	Status        enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	SubtotalCents int              `gorm:"column:subtotal_cents;not null;default:0"`
	Lines         []CartLine       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
