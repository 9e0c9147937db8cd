package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
)

// Repository persists checkout sessions, the durable replacement for a
// process-local session map. Lookup works from either direction: session id
// for client cancels, payment intent id for webhooks.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return nil
}

// FindByID loads a session by its id. Returns nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	return &session, nil
}

// FindByIntentID loads a session by gateway payment intent id. Returns nil
// when absent.
func (r *Repository) FindByIntentID(ctx context.Context, intentID string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).Where("payment_intent_id = ?", intentID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session by intent")
	}
	return &session, nil
}

// Delete removes a session and reports whether this call removed the row.
// Cancel, sweep, and settlement all race to delete; whichever call claims
// the row owns the session's reservations, the rest must leave them alone.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CheckoutSession{})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete checkout session")
	}
	return res.RowsAffected > 0, nil
}

// ListExpired returns sessions past their expiry, oldest first, capped at
// limit. The sweep job feeds these back through the cancel path.
func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.CheckoutSession, error) {
	var sessions []models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired checkout sessions")
	}
	return sessions, nil
}
