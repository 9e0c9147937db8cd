package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasreyna/shopmate-backend/pkg/enums"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

// Order is the durable record created exactly once per settled payment
// intent. The unique index on stripe_payment_intent_id is the idempotency
// backstop against redelivered webhooks. Orders are never hard-deleted.
type Order struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber           string              `gorm:"column:order_number;not null;uniqueIndex"`
	StripePaymentIntentID string              `gorm:"column:stripe_payment_intent_id;not null;uniqueIndex:uq_orders_payment_intent"`
	CustomerID            *uuid.UUID          `gorm:"column:customer_id;type:uuid;index"`
	BuyerEmail            string              `gorm:"column:buyer_email;not null"`
	BuyerName             string              `gorm:"column:buyer_name;not null"`
	Status                enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus         enums.PaymentStatus `gorm:"column:payment_status;not null;default:'unpaid'"`
	ShippingAddress       *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	SubtotalCents         int                 `gorm:"column:subtotal_cents;not null"`
	ShippingCents         int                 `gorm:"column:shipping_cents;not null"`
	TaxCents              int                 `gorm:"column:tax_cents;not null"`
	TotalCents            int                 `gorm:"column:total_cents;not null"`
	TrackingNumber        *string             `gorm:"column:tracking_number"`
	Carrier               *string             `gorm:"column:carrier"`
	Notes                 *string             `gorm:"column:notes"`
	PaidAt                *time.Time          `gorm:"column:paid_at"`
	ProcessingAt          *time.Time          `gorm:"column:processing_at"`
	ShippedAt             *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt           *time.Time          `gorm:"column:delivered_at"`
	CancelledAt           *time.Time          `gorm:"column:cancelled_at"`
	Items                 []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
