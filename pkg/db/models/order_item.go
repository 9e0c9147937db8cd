package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a price/quantity snapshot decoupled from the live variant.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	SKU            string     `gorm:"column:sku;not null"`
	Name           string     `gorm:"column:name;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
