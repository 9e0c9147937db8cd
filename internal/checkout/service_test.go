package checkout

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/internal/cart"
	"github.com/lucasreyna/shopmate-backend/internal/catalog"
	"github.com/lucasreyna/shopmate-backend/internal/inventory"
	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/stripe"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// hookedTxRunner runs before once ahead of the transaction, standing in for
// a competing path that commits between a service's read and its write.
type hookedTxRunner struct {
	db     *gorm.DB
	before func()
}

func (r *hookedTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.before != nil {
		r.before()
		r.before = nil
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubGateway struct {
	createErr error
	created   int
	cancelled []string
}

func (g *stubGateway) CreateIntent(_ context.Context, _ int, _ string, _ map[string]string, _ string) (*stripe.Intent, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created++
	id := fmt.Sprintf("pi_test_%d", g.created)
	return &stripe.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *stubGateway) CancelIntent(_ context.Context, intentID string) error {
	g.cancelled = append(g.cancelled, intentID)
	return nil
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
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
		`CREATE TABLE IF NOT EXISTS checkout_sessions (
  id TEXT PRIMARY KEY,
  payment_intent_id TEXT NOT NULL UNIQUE,
  cart_id TEXT NOT NULL,
  customer_id TEXT,
  buyer_email TEXT NOT NULL,
  buyer_name TEXT NOT NULL,
  shipping_address TEXT,
  reservations TEXT,
  line_items TEXT,
  subtotal_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  expires_at DATETIME NOT NULL,
  created_at DATETIME
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func checkoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		SessionTTL:         30 * time.Minute,
		FreeShippingCents:  10000,
		FlatShippingCents:  500,
		TaxRateBasisPoints: 800,
		Currency:           "usd",
	}
}

func newCheckoutService(t *testing.T, db *gorm.DB, gateway PaymentGateway) *Service {
	t.Helper()
	return newCheckoutServiceWithTx(t, db, gateway, dbTxRunner{db: db})
}

func newCheckoutServiceWithTx(t *testing.T, db *gorm.DB, gateway PaymentGateway, runner TxRunner) *Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard, Level: zerolog.Disabled})
	svc, err := NewService(
		NewRepository(db),
		cart.NewRepository(db),
		catalog.NewRepository(db),
		inventory.NewLedger(),
		gateway,
		runner,
		checkoutConfig(),
		logg,
	)
	require.NoError(t, err)
	return svc
}

func seedVariant(t *testing.T, db *gorm.DB, sku string, priceCents, onHand int) *models.Variant {
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
		OnHand:    onHand,
		Active:    true,
	}
	require.NoError(t, db.Create(variant).Error)
	return variant
}

func seedCart(t *testing.T, db *gorm.DB, token string, lines map[uuid.UUID]int) *models.Cart {
	t.Helper()

	cartRecord := &models.Cart{
		ID:           uuid.New(),
		SessionToken: &token,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, db.Create(cartRecord).Error)

	for variantID, qty := range lines {
		var variant models.Variant
		require.NoError(t, db.First(&variant, "id = ?", variantID).Error)
		line := &models.CartLine{
			ID:                 uuid.New(),
			CartID:             cartRecord.ID,
			VariantID:          variantID,
			ProductID:          variant.ProductID,
			Quantity:           qty,
			PriceSnapshotCents: 1,
			AddedAt:            time.Now().UTC(),
		}
		require.NoError(t, db.Create(line).Error)
	}
	return cartRecord
}

func variantState(t *testing.T, db *gorm.DB, id uuid.UUID) models.Variant {
	t.Helper()

	var variant models.Variant
	require.NoError(t, db.First(&variant, "id = ?", id).Error)
	return variant
}

func TestServiceStartHappyPath(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &stubGateway{}
	svc := newCheckoutService(t, db, gateway)
	ctx := context.Background()

	variant := seedVariant(t, db, "SKU-CO-1", 1000, 10)
	token := "tok-co-1"
	seedCart(t, db, token, map[uuid.UUID]int{variant.ID: 2})

	result, err := svc.Start(ctx, types.Identity{SessionToken: token}, StartRequest{
		ShippingAddress: types.Address{Line1: "1 Main St", City: "Norman", State: "OK", PostalCode: "73072", Country: "US"},
		BuyerEmail:      "buyer@example.com",
		BuyerName:       "Buyer One",
	})
	require.NoError(t, err)
	assert.Equal(t, 2000, result.Totals.SubtotalCents)
	assert.Equal(t, 500, result.Totals.ShippingCents)
	assert.Equal(t, 160, result.Totals.TaxCents)
	assert.Equal(t, 2660, result.Totals.TotalCents)
	assert.NotEmpty(t, result.ClientSecret)
	require.Len(t, result.LineItems, 1)
	assert.Equal(t, 1000, result.LineItems[0].UnitPriceCents, "repriced from catalog, not the snapshot")

	got := variantState(t, db, variant.ID)
	assert.Equal(t, 2, got.Reserved)
	assert.Equal(t, 10, got.OnHand)

	var session models.CheckoutSession
	require.NoError(t, db.First(&session, "id = ?", result.SessionID).Error)
	assert.Equal(t, "pi_test_1", session.PaymentIntentID)
	assert.Equal(t, 2660, session.TotalCents)
	require.Len(t, session.Reservations, 1)
	assert.Equal(t, variant.ID, session.Reservations[0].VariantID)
}

func TestServiceStartAllOrNothing(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &stubGateway{}
	svc := newCheckoutService(t, db, gateway)
	ctx := context.Background()

	plenty := seedVariant(t, db, "SKU-CO-2A", 1000, 5)
	scarce := seedVariant(t, db, "SKU-CO-2B", 1000, 0)
	token := "tok-co-2"
	seedCart(t, db, token, map[uuid.UUID]int{plenty.ID: 2, scarce.ID: 1})

	_, err := svc.Start(ctx, types.Identity{SessionToken: token}, StartRequest{BuyerEmail: "b@example.com", BuyerName: "B"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	assert.Equal(t, 0, variantState(t, db, plenty.ID).Reserved, "no partial reservation leak")
	assert.Equal(t, 0, variantState(t, db, scarce.ID).Reserved)
	assert.Zero(t, gateway.created, "no intent opened for a failed reservation")

	var count int64
	require.NoError(t, db.Model(&models.CheckoutSession{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceStartGatewayFailureRollsBack(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &stubGateway{createErr: fmt.Errorf("gateway down")}
	svc := newCheckoutService(t, db, gateway)
	ctx := context.Background()

	variant := seedVariant(t, db, "SKU-CO-3", 1000, 5)
	token := "tok-co-3"
	seedCart(t, db, token, map[uuid.UUID]int{variant.ID: 2})

	_, err := svc.Start(ctx, types.Identity{SessionToken: token}, StartRequest{BuyerEmail: "b@example.com", BuyerName: "B"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	assert.Equal(t, 0, variantState(t, db, variant.ID).Reserved, "reservation rolled back with the transaction")
}

func TestServiceStartEmptyAndInvalidCart(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &stubGateway{}
	svc := newCheckoutService(t, db, gateway)
	ctx := context.Background()

	_, err := svc.Start(ctx, types.Identity{SessionToken: "tok-co-4"}, StartRequest{})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCartEmpty))

	variant := seedVariant(t, db, "SKU-CO-4", 1000, 5)
	token := "tok-co-5"
	seedCart(t, db, token, map[uuid.UUID]int{variant.ID: 1})
	require.NoError(t, db.Model(&models.Variant{}).Where("id = ?", variant.ID).Update("active", false).Error)

	_, err = svc.Start(ctx, types.Identity{SessionToken: token}, StartRequest{})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCartInvalid))
	assert.Equal(t, 0, variantState(t, db, variant.ID).Reserved)
}

func TestServiceCancelIdempotent(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &stubGateway{}
	svc := newCheckoutService(t, db, gateway)
	ctx := context.Background()

	variant := seedVariant(t, db, "SKU-CO-5", 1000, 5)
	token := "tok-co-6"
	seedCart(t, db, token, map[uuid.UUID]int{variant.ID: 3})

	result, err := svc.Start(ctx, types.Identity{SessionToken: token}, StartRequest{BuyerEmail: "b@example.com", BuyerName: "B"})
	require.NoError(t, err)
	require.Equal(t, 3, variantState(t, db, variant.ID).Reserved)

	require.NoError(t, svc.Cancel(ctx, result.SessionID))
	assert.Equal(t, 0, variantState(t, db, variant.ID).Reserved, "reserve then release round-trips")
	assert.Contains(t, gateway.cancelled, "pi_test_1")

	require.NoError(t, svc.Cancel(ctx, result.SessionID), "second cancel is a no-op")
	assert.Equal(t, 0, variantState(t, db, variant.ID).Reserved, "no double release")
	assert.Len(t, gateway.cancelled, 1)
}

func TestServiceCancelSkipsReleaseWhenSessionClaimed(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &stubGateway{}
	ctx := context.Background()

	variant := seedVariant(t, db, "SKU-CO-7", 1000, 10)
	token := "tok-co-8"
	seedCart(t, db, token, map[uuid.UUID]int{variant.ID: 2})

	result, err := newCheckoutService(t, db, gateway).Start(ctx, types.Identity{SessionToken: token}, StartRequest{BuyerEmail: "b@example.com", BuyerName: "B"})
	require.NoError(t, err)

	// Other buyers hold three more units of the same variant.
	require.NoError(t, db.Model(&models.Variant{}).Where("id = ?", variant.ID).
		Update("reserved", gorm.Expr("reserved + ?", 3)).Error)
	require.Equal(t, 5, variantState(t, db, variant.ID).Reserved)

	// A failed-payment webhook settles this session after Cancel has loaded
	// it but before Cancel's transaction opens: the webhook releases the two
	// units and removes the session row.
	runner := &hookedTxRunner{db: db, before: func() {
		require.NoError(t, db.Model(&models.Variant{}).Where("id = ?", variant.ID).
			Update("reserved", gorm.Expr("reserved - ?", 2)).Error)
		require.NoError(t, db.Where("id = ?", result.SessionID).Delete(&models.CheckoutSession{}).Error)
	}}
	svc := newCheckoutServiceWithTx(t, db, gateway, runner)

	require.NoError(t, svc.Cancel(ctx, result.SessionID))

	got := variantState(t, db, variant.ID)
	assert.Equal(t, 3, got.Reserved, "the other buyers' holds survive the lost race")
	assert.Empty(t, gateway.cancelled, "losing the claim skips the intent cancel too")
}

func TestRepositoryDeleteReportsClaim(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	session := &models.CheckoutSession{
		ID:              uuid.New(),
		PaymentIntentID: "pi_claim_1",
		CartID:          uuid.New(),
		BuyerEmail:      "b@example.com",
		BuyerName:       "B",
		ExpiresAt:       time.Now().UTC().Add(30 * time.Minute),
	}
	require.NoError(t, repo.Create(ctx, session))

	claimed, err := repo.Delete(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Delete(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "only the first delete claims the row")
}

func TestServiceSweepExpired(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	gateway := &stubGateway{}
	svc := newCheckoutService(t, db, gateway)
	ctx := context.Background()

	variant := seedVariant(t, db, "SKU-CO-6", 1000, 5)
	token := "tok-co-7"
	seedCart(t, db, token, map[uuid.UUID]int{variant.ID: 1})

	result, err := svc.Start(ctx, types.Identity{SessionToken: token}, StartRequest{BuyerEmail: "b@example.com", BuyerName: "B"})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.Model(&models.CheckoutSession{}).Where("id = ?", result.SessionID).Update("expires_at", past).Error)

	swept, err := svc.SweepExpired(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 0, variantState(t, db, variant.ID).Reserved)

	session, err := NewRepository(db).FindByID(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Nil(t, session, "swept session removed")
}
