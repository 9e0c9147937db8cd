package models

import (
	"time"

	"github.com/google/uuid"
)

// CartLine holds one (variant, quantity) pair with the price observed when
// the line was added. Checkout reprices from the live catalog; the snapshot
// is for display only.
type CartLine struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID             uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	VariantID          uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	ProductID          uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity           int       `gorm:"column:quantity;not null"`
	PriceSnapshotCents int       `gorm:"column:price_snapshot_cents;not null"`
	AddedAt            time.Time `gorm:"column:added_at;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
