package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/internal/inventory"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  merchant_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	variants := `
CREATE TABLE IF NOT EXISTS variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  on_hand INTEGER NOT NULL DEFAULT 0,
  reserved INTEGER NOT NULL DEFAULT 0,
  price_override_cents INTEGER,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(variants).Error)
	return db
}

func seedProductWithVariant(t *testing.T, db *gorm.DB, sku string, priceCents, onHand, reserved int, productActive, variantActive bool) (*models.Product, *models.Variant) {
	t.Helper()

	product := &models.Product{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Title:      "Test Product " + sku,
		PriceCents: priceCents,
		Active:     productActive,
	}
	require.NoError(t, db.Create(product).Error)

	variant := &models.Variant{
		ID:        uuid.New(),
		ProductID: product.ID,
		SKU:       sku,
		OnHand:    onHand,
		Reserved:  reserved,
		Active:    variantActive,
	}
	require.NoError(t, db.Create(variant).Error)
	return product, variant
}

func newCatalogService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard, Level: zerolog.Disabled})
	svc, err := NewService(NewRepository(db), inventory.NewLedger(), dbTxRunner{db: db}, logg)
	require.NoError(t, err)
	return svc
}

func TestServiceAvailability(t *testing.T) {
	t.Parallel()

	db := setupCatalogTestDB(t)
	svc := newCatalogService(t, db)
	ctx := context.Background()

	_, variant := seedProductWithVariant(t, db, "SKU-AVAIL-1", 2500, 8, 3, true, true)

	avail, err := svc.Availability(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, "SKU-AVAIL-1", avail.SKU)
	assert.Equal(t, 5, avail.Available)
	assert.True(t, avail.Active)

	_, err = svc.Availability(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestServiceAvailabilityInactiveProduct(t *testing.T) {
	t.Parallel()

	db := setupCatalogTestDB(t)
	svc := newCatalogService(t, db)
	ctx := context.Background()

	_, variant := seedProductWithVariant(t, db, "SKU-AVAIL-2", 2500, 8, 0, false, true)

	avail, err := svc.Availability(ctx, variant.ID)
	require.NoError(t, err)
	assert.False(t, avail.Active, "inactive product makes the variant unsellable")
}

func TestServiceAdjustStock(t *testing.T) {
	t.Parallel()

	db := setupCatalogTestDB(t)
	svc := newCatalogService(t, db)
	ctx := context.Background()

	_, variant := seedProductWithVariant(t, db, "SKU-ADJ-SVC", 1000, 10, 4, true, true)

	onHand, err := svc.AdjustStock(ctx, variant.ID, -6)
	require.NoError(t, err)
	assert.Equal(t, 4, onHand)

	_, err = svc.AdjustStock(ctx, variant.ID, -1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestRepositoryGetVariantDetails(t *testing.T) {
	t.Parallel()

	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	override := 1800
	productA, variantA := seedProductWithVariant(t, db, "SKU-BULK-1", 2000, 5, 0, true, true)
	require.NoError(t, db.Model(&models.Variant{}).Where("id = ?", variantA.ID).Update("price_override_cents", override).Error)
	_, variantB := seedProductWithVariant(t, db, "SKU-BULK-2", 3000, 2, 0, true, true)

	details, err := repo.GetVariantDetails(ctx, []uuid.UUID{variantA.ID, variantB.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, details, 2)

	a := details[variantA.ID]
	assert.Equal(t, productA.ID, a.Product.ID)
	assert.Equal(t, override, a.EffectivePriceCents())

	b := details[variantB.ID]
	assert.Equal(t, 3000, b.EffectivePriceCents())
}
