package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

// Repository persists carts and their lines.
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

// FindByIdentity loads the identity's cart with lines. Returns nil when no
// cart exists.
func (r *Repository) FindByIdentity(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	query := r.db.WithContext(ctx).Preload("Lines")
	if identity.CustomerID != nil {
		query = query.Where("customer_id = ?", *identity.CustomerID)
	} else {
		query = query.Where("session_token = ?", identity.SessionToken)
	}

	var cart models.Cart
	if err := query.First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return &cart, nil
}

// FindByID loads a cart with lines by primary key. Returns nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart by id")
	}
	return &cart, nil
}

func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return nil
}

// Touch slides the cart expiry window.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("expires_at", expiresAt).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart expiry")
	}
	return nil
}

// FindLine loads one line scoped to a cart. Returns nil when absent.
func (r *Repository) FindLine(ctx context.Context, cartID, lineID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	return &line, nil
}

// FindLineByVariant loads the line for a variant within a cart. Returns nil
// when absent.
func (r *Repository) FindLineByVariant(ctx context.Context, cartID, variantID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line by variant")
	}
	return &line, nil
}

func (r *Repository) CreateLine(ctx context.Context, line *models.CartLine) error {
	if err := r.db.WithContext(ctx).Create(line).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
	}
	return nil
}

func (r *Repository) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	err := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line quantity")
	}
	return nil
}

func (r *Repository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("id = ?", lineID).
		Delete(&models.CartLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return nil
}

// DeleteLines removes every line of a cart.
func (r *Repository) DeleteLines(ctx context.Context, cartID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart lines")
	}
	return nil
}

// ListExpiredIDs returns ids of carts whose expiry passed, oldest first.
func (r *Repository) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired carts")
	}
	return ids, nil
}

// Delete removes the cart row and, through the FK cascade, its lines.
func (r *Repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartLine{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart lines")
	}
	err := r.db.WithContext(ctx).
		Where("id = ?", cartID).
		Delete(&models.Cart{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
	}
	return nil
}
