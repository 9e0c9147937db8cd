package models

import (
	"time"

	"github.com/google/uuid"
)

// Variant is the sellable unit. OnHand/Reserved only ever change through
// the inventory ledger's atomic operations; available stock is
// on_hand - reserved and is never negative. Variants are deactivated,
// never deleted.
type Variant struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID          uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SKU                string    `gorm:"column:sku;not null;uniqueIndex"`
	OnHand             int       `gorm:"column:on_hand;not null;default:0"`
	Reserved           int       `gorm:"column:reserved;not null;default:0"`
	PriceOverrideCents *int      `gorm:"column:price_override_cents"`
	Active             bool      `gorm:"column:active;not null;default:true"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Available returns the sellable quantity.
func (v Variant) Available() int {
	return v.OnHand - v.Reserved
}

// EffectivePriceCents resolves the variant override against the product base
// price.
func (v Variant) EffectivePriceCents(product *Product) int {
	if v.PriceOverrideCents != nil {
		return *v.PriceOverrideCents
	}
	if product != nil {
		return product.PriceCents
	}
	return 0
}
