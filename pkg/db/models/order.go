package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/enums"
)

// Order is an immutable purchase produced from a completed cart.
type Order struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	CartID     uuid.UUID         `gorm:"column:cart_id;type:uuid;not null"`
	Status     enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalCents int               `gorm:"column:total_cents;not null"`
	Items      []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment    *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt     *time.Time        `gorm:"column:paid_at"`
	CanceledAt *time.Time        `gorm:"column:canceled_at"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
