package settlement

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
)

// nextOrderNumber assigns ORD-YYYYMMDD-NNN from a per-day counter row. The
// upsert increments atomically at the storage layer, so concurrent
// settlements on the same day can't mint the same sequence.
func nextOrderNumber(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")

	var seq int
	err := tx.WithContext(ctx).Raw(`
		INSERT INTO order_counters (day, seq) VALUES (?, 1)
		ON CONFLICT (day) DO UPDATE SET seq = order_counters.seq + 1
		RETURNING seq
	`, day).Scan(&seq).Error
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment order counter")
	}
	return fmt.Sprintf("ORD-%s-%03d", day, seq), nil
}
