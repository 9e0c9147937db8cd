package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasreyna/shopmate-backend/pkg/enums"
)

// NotificationDelivery records one attempted downstream notification.
// Failed rows are retried by the cron sweep until Attempts reaches the
// configured cap, then stay queryable as permanently failed.
type NotificationDelivery struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind      enums.NotificationKind `gorm:"column:kind;not null"`
	Recipient string                 `gorm:"column:recipient;not null"`
	Payload   map[string]any         `gorm:"column:payload;type:jsonb;serializer:json"`
	Status    enums.DeliveryStatus   `gorm:"column:status;not null;default:'pending';index"`
	Attempts  int                    `gorm:"column:attempts;not null;default:0"`
	LastError *string                `gorm:"column:last_error"`
	SentAt    *time.Time             `gorm:"column:sent_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
