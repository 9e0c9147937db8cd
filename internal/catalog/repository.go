package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
)

// Repository reads product and variant rows for cart validation, checkout
// pricing, and availability queries.
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

// VariantDetail bundles a variant with its owning product.
type VariantDetail struct {
	Variant models.Variant
	Product models.Product
}

// EffectivePriceCents resolves the variant price against the product base.
func (d VariantDetail) EffectivePriceCents() int {
	return d.Variant.EffectivePriceCents(&d.Product)
}

// Sellable reports whether both product and variant are active.
func (d VariantDetail) Sellable() bool {
	return d.Variant.Active && d.Product.Active
}

func (r *Repository) GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	return &variant, nil
}

// GetVariantDetail loads a variant joined with its product.
func (r *Repository) GetVariantDetail(ctx context.Context, id uuid.UUID) (*VariantDetail, error) {
	variant, err := r.GetVariant(ctx, id)
	if err != nil {
		return nil, err
	}

	var product models.Product
	err = r.db.WithContext(ctx).Where("id = ?", variant.ProductID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found for variant")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &VariantDetail{Variant: *variant, Product: product}, nil
}

// GetVariantDetails bulk-loads variants and their products, keyed by variant
// id. Missing variants are simply absent from the result; callers decide
// whether that is an error.
func (r *Repository) GetVariantDetails(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]VariantDetail, error) {
	out := make(map[uuid.UUID]VariantDetail, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var variants []models.Variant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&variants).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}

	productIDs := make([]uuid.UUID, 0, len(variants))
	for _, v := range variants {
		productIDs = append(productIDs, v.ProductID)
	}

	products := map[uuid.UUID]models.Product{}
	if len(productIDs) > 0 {
		var rows []models.Product
		if err := r.db.WithContext(ctx).Where("id IN ?", productIDs).Find(&rows).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		for _, p := range rows {
			products[p.ID] = p
		}
	}

	for _, v := range variants {
		out[v.ID] = VariantDetail{Variant: v, Product: products[v.ProductID]}
	}
	return out, nil
}
