package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
)

// Ledger mutates per-variant stock counters. Every operation is a single
// conditional UPDATE evaluated by the storage layer, so two concurrent
// checkouts racing for the last unit are serialized on the variant row and
// never read-then-write in application code.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Deduct(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Restore(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Adjust(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) (int, error)
}

type ledger struct{}

// NewLedger returns the gorm-backed ledger implementation.
func NewLedger() Ledger {
	return ledger{}
}

// Reserve increments reserved by qty only while on_hand - reserved >= qty.
// A zero-row update is disambiguated into NotFound (missing or inactive
// variant, permanent) versus InsufficientStock (carries sku and current
// availability for the caller's UX).
func (ledger) Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE variants
		SET reserved = reserved + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active = ? AND on_hand - reserved >= ?
	`, qty, variantID, true, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var variant models.Variant
	err := tx.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant after failed reserve")
	}
	if !variant.Active {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant is inactive")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for variant").
		WithDetails(map[string]any{
			"sku":       variant.SKU,
			"requested": qty,
			"available": variant.Available(),
		})
}

// Release returns a previously reserved quantity. The reserved >= qty guard
// means a zero-row update signals a reservation-accounting bug upstream, so
// it fails loudly instead of clamping silently.
func (ledger) Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE variants
		SET reserved = reserved - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved >= ?
	`, qty, variantID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "release would drive reserved negative").
			WithDetails(map[string]any{"variant_id": variantID, "quantity": qty})
	}
	return nil
}

// Deduct converts a held reservation into a permanent decrement in one
// atomic step. This is the only operation that reduces on_hand during
// settlement.
func (ledger) Deduct(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory deduct")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE variants
		SET on_hand = on_hand - ?,
			reserved = reserved - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved >= ? AND on_hand >= ?
	`, qty, qty, variantID, qty, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "deduct inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "deduct exceeds held reservation").
			WithDetails(map[string]any{"variant_id": variantID, "quantity": qty})
	}
	return nil
}

// Restore adds cancelled order quantities back to on_hand. The stock was
// permanently deducted at settlement, so this reverses that deduction and
// leaves reserved untouched.
func (ledger) Restore(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory restore")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE variants
		SET on_hand = on_hand + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, variantID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found for restore").
			WithDetails(map[string]any{"variant_id": variantID})
	}
	return nil
}

// Adjust applies a merchant stock correction. The condition keeps
// on_hand + delta >= reserved, which also keeps on_hand non-negative.
// Returns the new on_hand.
func (ledger) Adjust(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory adjust")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE variants
		SET on_hand = on_hand + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND on_hand + ? >= reserved
	`, delta, variantID, delta)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust inventory")
	}
	if res.RowsAffected == 0 {
		var variant models.Variant
		err := tx.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant after failed adjust")
		}
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment would drop on-hand below reserved").
			WithDetails(map[string]any{
				"sku":      variant.SKU,
				"on_hand":  variant.OnHand,
				"reserved": variant.Reserved,
				"delta":    delta,
			})
	}

	var variant models.Variant
	if err := tx.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload variant after adjust")
	}
	return variant.OnHand, nil
}
