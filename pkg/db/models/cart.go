package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is owned by exactly one identity: an authenticated customer or an
// anonymous session token. The expiry is a sliding window refreshed on
// every mutation.
type Cart struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID   *uuid.UUID `gorm:"column:customer_id;type:uuid;index"`
	SessionToken *string    `gorm:"column:session_token;index"`
	ExpiresAt    time.Time  `gorm:"column:expires_at;not null"`
	Lines        []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
