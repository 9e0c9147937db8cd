package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the merchant-facing catalog entry. Variants carry the sellable
// stock; the product holds shared metadata and the base price.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID  uuid.UUID `gorm:"column:merchant_id;type:uuid;not null;index"`
	Title       string    `gorm:"column:title;not null"`
	Description *string   `gorm:"column:description"`
	PriceCents  int       `gorm:"column:price_cents;not null"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	Variants    []Variant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
