package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/enums"
)

// Notification is one row in a user's in-app feed. ReadAt doubles as the
// read flag: nil means unread.
type Notification struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID uuid.UUID `gorm:"type:uuid;not null"`

	Type    enums.NotificationType `gorm:"type:notification_type;not null"`
	Title   string                 `gorm:"type:text;not null"`
	Message string                 `gorm:"type:text;not null"`
	Link    *string                `gorm:"type:text"`

	ReadAt    *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;default:now()"`
}
