package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

// CheckoutSession is the ephemeral record between checkout start and
// settlement, durable so a webhook can land on any instance. It is indexed
// by its own id and, uniquely, by the gateway payment intent id. Every
// reservation entry corresponds to a currently-held increment of the
// matching variant's reserved counter; destroying the session must be
// paired with releasing (or deducting) those reservations.
type CheckoutSession struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentIntentID string                  `gorm:"column:payment_intent_id;not null;uniqueIndex:uq_checkout_sessions_intent"`
	CartID          uuid.UUID               `gorm:"column:cart_id;type:uuid;not null"`
	CustomerID      *uuid.UUID              `gorm:"column:customer_id;type:uuid"`
	BuyerEmail      string                  `gorm:"column:buyer_email;not null"`
	BuyerName       string                  `gorm:"column:buyer_name;not null"`
	ShippingAddress *types.Address          `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Reservations    []types.ReservedLine    `gorm:"column:reservations;type:jsonb;serializer:json"`
	LineItems       []types.SessionLineItem `gorm:"column:line_items;type:jsonb;serializer:json"`
	SubtotalCents   int                     `gorm:"column:subtotal_cents;not null"`
	ShippingCents   int                     `gorm:"column:shipping_cents;not null"`
	TaxCents        int                     `gorm:"column:tax_cents;not null"`
	TotalCents      int                     `gorm:"column:total_cents;not null"`
	ExpiresAt       time.Time               `gorm:"column:expires_at;not null;index"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
}
