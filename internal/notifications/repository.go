package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	"github.com/lucasreyna/shopmate-backend/pkg/enums"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
)

// Repository persists notification delivery attempts.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, delivery *models.NotificationDelivery) error {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification delivery")
	}
	return nil
}

// MarkSent flips a delivery to sent and stamps the send time.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&models.NotificationDelivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  enums.DeliveryStatusSent,
			"sent_at": now,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification sent")
	}
	return nil
}

// MarkFailed records a failed attempt. The attempt counter increments in the
// database so concurrent retries don't lose counts.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, sendErr error) error {
	msg := ""
	if sendErr != nil {
		msg = sendErr.Error()
	}
	err := r.db.WithContext(ctx).
		Model(&models.NotificationDelivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.DeliveryStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification failed")
	}
	return nil
}

// ListRetryable returns failed deliveries still under the attempt cap,
// oldest first.
func (r *Repository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.NotificationDelivery, error) {
	var rows []models.NotificationDelivery
	err := r.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", enums.DeliveryStatusFailed, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list retryable notifications")
	}
	return rows, nil
}
