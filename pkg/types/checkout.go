package types

import "github.com/google/uuid"

// ReservedLine records one reservation held by a checkout session. The
// session is the single source of truth for which reservations must be
// released if it dies.
type ReservedLine struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// SessionLineItem snapshots a purchasable line at checkout-start time,
// decoupled from the live variant.
type SessionLineItem struct {
	VariantID      uuid.UUID `json:"variant_id"`
	ProductID      uuid.UUID `json:"product_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

// Totals carries the authoritative money breakdown computed at checkout.
type Totals struct {
	SubtotalCents int `json:"subtotal_cents"`
	ShippingCents int `json:"shipping_cents"`
	TaxCents      int `json:"tax_cents"`
	TotalCents    int `json:"total_cents"`
}
