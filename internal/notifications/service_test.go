package notifications

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	"github.com/lucasreyna/shopmate-backend/pkg/enums"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

type flakySender struct {
	failures int
	sent     int
}

func (s *flakySender) Send(_ context.Context, _ enums.NotificationKind, _ string, _ map[string]any) error {
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("transport unavailable")
	}
	s.sent++
	return nil
}

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS notification_deliveries (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  recipient TEXT NOT NULL,
  payload TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  sent_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newNotificationsService(t *testing.T, db *gorm.DB, sender Sender) *Service {
	t.Helper()

	cfg := config.NotificationsConfig{MaxAttempts: 3, RetryBatch: 50}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard, Level: zerolog.Disabled})
	svc, err := NewService(NewRepository(db), sender, cfg, logg)
	require.NoError(t, err)
	return svc
}

func TestNotifySuccess(t *testing.T) {
	t.Parallel()

	db := setupNotificationsTestDB(t)
	sender := &flakySender{}
	svc := newNotificationsService(t, db, sender)
	ctx := context.Background()

	svc.Notify(ctx, enums.NotificationOrderConfirmation, "buyer@example.com", map[string]any{"order_number": "ORD-20260831-001"})

	var delivery models.NotificationDelivery
	require.NoError(t, db.First(&delivery).Error)
	assert.Equal(t, enums.DeliveryStatusSent, delivery.Status)
	assert.NotNil(t, delivery.SentAt)
	assert.Equal(t, 1, sender.sent)
}

func TestNotifyFailureIsSwallowedAndRetried(t *testing.T) {
	t.Parallel()

	db := setupNotificationsTestDB(t)
	sender := &flakySender{failures: 1}
	svc := newNotificationsService(t, db, sender)
	ctx := context.Background()

	svc.Notify(ctx, enums.NotificationMerchantNewOrder, "merchant", nil)

	var delivery models.NotificationDelivery
	require.NoError(t, db.First(&delivery).Error)
	assert.Equal(t, enums.DeliveryStatusFailed, delivery.Status)
	assert.Equal(t, 1, delivery.Attempts)

	retried, err := svc.RetrySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, retried)

	require.NoError(t, db.First(&delivery, "id = ?", delivery.ID).Error)
	assert.Equal(t, enums.DeliveryStatusSent, delivery.Status)
}

func TestRetrySweepRespectsAttemptCap(t *testing.T) {
	t.Parallel()

	db := setupNotificationsTestDB(t)
	sender := &flakySender{failures: 100}
	svc := newNotificationsService(t, db, sender)
	ctx := context.Background()

	svc.Notify(ctx, enums.NotificationLowStockAlert, "merchant", map[string]any{"sku": "SKU-X"})

	for i := 0; i < 5; i++ {
		_, err := svc.RetrySweep(ctx)
		require.NoError(t, err)
	}

	var delivery models.NotificationDelivery
	require.NoError(t, db.First(&delivery).Error)
	assert.Equal(t, enums.DeliveryStatusFailed, delivery.Status, "permanently failed rows stay queryable")
	assert.Equal(t, 3, delivery.Attempts, "attempts capped at the maximum")

	retried, err := svc.RetrySweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, retried, "capped rows are no longer picked up")
}
