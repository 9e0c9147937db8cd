package cart

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/internal/catalog"
	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  merchant_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  on_hand INTEGER NOT NULL DEFAULT 0,
  reserved INTEGER NOT NULL DEFAULT 0,
  price_override_cents INTEGER,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  customer_id TEXT,
  session_token TEXT,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_lines (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_snapshot_cents INTEGER NOT NULL,
  added_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func newCartService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	cfg := config.CartConfig{TTL: 168 * time.Hour, MaxQtyPerAdd: 10}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard, Level: zerolog.Disabled})
	svc, err := NewService(NewRepository(db), catalog.NewRepository(db), dbTxRunner{db: db}, cfg, logg)
	require.NoError(t, err)
	return svc
}

func seedSellableVariant(t *testing.T, db *gorm.DB, sku string, priceCents int) *models.Variant {
	t.Helper()

	product := &models.Product{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Title:      "Product " + sku,
		PriceCents: priceCents,
		Active:     true,
	}
	require.NoError(t, db.Create(product).Error)

	variant := &models.Variant{
		ID:        uuid.New(),
		ProductID: product.ID,
		SKU:       sku,
		OnHand:    100,
		Active:    true,
	}
	require.NoError(t, db.Create(variant).Error)
	return variant
}

func anonIdentity(token string) types.Identity {
	return types.Identity{SessionToken: token}
}

func TestServiceAddItemLazyCreateAndUpsert(t *testing.T) {
	t.Parallel()

	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	identity := anonIdentity("tok-add-1")

	variant := seedSellableVariant(t, db, "SKU-CART-1", 1500)

	view, err := svc.AddItem(ctx, identity, variant.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, 1500, view.Lines[0].PriceSnapshotCents)
	assert.Equal(t, 3000, view.SubtotalCents)

	view, err = svc.AddItem(ctx, identity, variant.ID, 3)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1, "re-adding the same variant merges into one line")
	assert.Equal(t, 5, view.Lines[0].Quantity)
}

func TestServiceAddItemValidation(t *testing.T) {
	t.Parallel()

	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	identity := anonIdentity("tok-add-2")

	variant := seedSellableVariant(t, db, "SKU-CART-2", 1000)

	_, err := svc.AddItem(ctx, identity, variant.ID, 11)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(ctx, identity, variant.ID, 0)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(ctx, identity, uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, db.Model(&models.Variant{}).Where("id = ?", variant.ID).Update("active", false).Error)
	_, err = svc.AddItem(ctx, identity, variant.ID, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCartInvalid))
}

func TestServiceUpdateAndRemoveItem(t *testing.T) {
	t.Parallel()

	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	identity := anonIdentity("tok-upd-1")

	variant := seedSellableVariant(t, db, "SKU-CART-3", 2000)

	view, err := svc.AddItem(ctx, identity, variant.ID, 1)
	require.NoError(t, err)
	lineID := view.Lines[0].LineID

	view, err = svc.UpdateItem(ctx, identity, lineID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Lines[0].Quantity)

	_, err = svc.UpdateItem(ctx, identity, uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	view, err = svc.RemoveItem(ctx, identity, lineID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestServiceExpiredCartTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	identity := anonIdentity("tok-exp-1")

	variant := seedSellableVariant(t, db, "SKU-CART-4", 900)

	view, err := svc.AddItem(ctx, identity, variant.ID, 2)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Cart{}).Where("id = ?", view.CartID).Update("expires_at", past).Error)

	got, err := svc.Get(ctx, identity)
	require.NoError(t, err)
	assert.Empty(t, got.Lines)

	var count int64
	require.NoError(t, db.Model(&models.Cart{}).Where("id = ?", view.CartID).Count(&count).Error)
	assert.Zero(t, count, "expired cart is deleted on access")
}

func TestServiceMerge(t *testing.T) {
	t.Parallel()

	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	customerID := uuid.New()
	customer := types.Identity{CustomerID: &customerID}
	guest := anonIdentity("tok-merge-1")

	shared := seedSellableVariant(t, db, "SKU-MRG-1", 1000)
	guestOnly := seedSellableVariant(t, db, "SKU-MRG-2", 500)

	_, err := svc.AddItem(ctx, customer, shared.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, shared.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, guestOnly.ID, 3)
	require.NoError(t, err)

	require.NoError(t, svc.Merge(ctx, guest.SessionToken, customerID))

	view, err := svc.Get(ctx, customer)
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)

	byVariant := map[uuid.UUID]LineView{}
	for _, line := range view.Lines {
		byVariant[line.VariantID] = line
	}
	assert.Equal(t, 3, byVariant[shared.ID].Quantity, "shared variant quantities sum")
	assert.Equal(t, 3, byVariant[guestOnly.ID].Quantity)

	got, err := svc.Get(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, got.Lines, "guest cart is gone after merge")

	require.NoError(t, svc.Merge(ctx, "tok-nonexistent", customerID), "merging a missing guest cart is a no-op")
}

func TestServiceClear(t *testing.T) {
	t.Parallel()

	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	identity := anonIdentity("tok-clr-1")

	variant := seedSellableVariant(t, db, "SKU-CLR-1", 700)
	_, err := svc.AddItem(ctx, identity, variant.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, identity))
	require.NoError(t, svc.Clear(ctx, identity), "clear is idempotent")

	view, err := svc.Get(ctx, identity)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}
