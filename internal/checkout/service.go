package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// PaymentGateway is the slice of the payment processor the orchestrator
// needs.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountCents int, currency string, metadata map[string]string, buyerEmail string) (*stripe.Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the checkout orchestrator: it validates the cart, reserves
// inventory all-or-nothing, reprices from the live catalog, opens a payment
// intent, and persists the session that ties those together.
type Service struct {
	sessions *Repository
	carts    *cart.Repository
	catalog  *catalog.Repository
	ledger   inventory.Ledger
	gateway  PaymentGateway
	tx       TxRunner
	cfg      config.CheckoutConfig
	logg     *logger.Logger
}

func NewService(
	sessions *Repository,
	carts *cart.Repository,
	catalogRepo *catalog.Repository,
	ledger inventory.Ledger,
	gateway PaymentGateway,
	tx TxRunner,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (*Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		sessions: sessions,
		carts:    carts,
		catalog:  catalogRepo,
		ledger:   ledger,
		gateway:  gateway,
		tx:       tx,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

// StartRequest carries the buyer-provided checkout inputs.
type StartRequest struct {
	ShippingAddress types.Address
	BuyerEmail      string
	BuyerName       string
}

// StartResult is the redacted client-facing view returned by Start.
type StartResult struct {
	SessionID    uuid.UUID               `json:"session_id"`
	ClientSecret string                  `json:"client_secret"`
	Totals       types.Totals            `json:"totals"`
	LineItems    []types.SessionLineItem `json:"line_items"`
	ExpiresAt    time.Time               `json:"expires_at"`
}

// Start runs the checkout pipeline. Reservation, intent creation, and
// session persistence share one transaction so a failure at any step leaves
// no partial reservations standing. If the transaction rolls back after the
// gateway intent was opened, the intent is cancelled best-effort.
func (s *Service) Start(ctx context.Context, identity types.Identity, req StartRequest) (*StartResult, error) {
	cartRecord, err := s.carts.FindByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cartRecord == nil || len(cartRecord.Lines) == 0 || time.Now().UTC().After(cartRecord.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeCartEmpty, "cart is empty")
	}

	lineItems, reservations, subtotal, err := s.validateAndPrice(ctx, cartRecord)
	if err != nil {
		return nil, err
	}
	totals := priceTotals(s.cfg, subtotal)

	sessionID := uuid.New()
	expiresAt := time.Now().UTC().Add(s.cfg.SessionTTL)

	var (
		intentID string
		result   *StartResult
	)
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, line := range reservations {
			if rerr := s.ledger.Reserve(ctx, tx, line.VariantID, line.Quantity); rerr != nil {
				return rerr
			}
		}

		metadata := map[string]string{
			"session_id": sessionID.String(),
			"cart_id":    cartRecord.ID.String(),
		}
		if identity.CustomerID != nil {
			metadata["customer_id"] = identity.CustomerID.String()
		}
		intent, gerr := s.gateway.CreateIntent(ctx, totals.TotalCents, s.cfg.Currency, metadata, req.BuyerEmail)
		if gerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, gerr, "create payment intent")
		}
		intentID = intent.ID

		session := &models.CheckoutSession{
			ID:              sessionID,
			PaymentIntentID: intent.ID,
			CartID:          cartRecord.ID,
			CustomerID:      identity.CustomerID,
			BuyerEmail:      req.BuyerEmail,
			BuyerName:       req.BuyerName,
			ShippingAddress: &req.ShippingAddress,
			Reservations:    reservations,
			LineItems:       lineItems,
			SubtotalCents:   totals.SubtotalCents,
			ShippingCents:   totals.ShippingCents,
			TaxCents:        totals.TaxCents,
			TotalCents:      totals.TotalCents,
			ExpiresAt:       expiresAt,
		}
		if cerr := s.sessions.WithTx(tx).Create(ctx, session); cerr != nil {
			return cerr
		}

		result = &StartResult{
			SessionID:    sessionID,
			ClientSecret: intent.ClientSecret,
			Totals:       totals,
			LineItems:    lineItems,
			ExpiresAt:    expiresAt,
		}
		return nil
	})
	if txErr != nil {
		if intentID != "" {
			if cerr := s.gateway.CancelIntent(ctx, intentID); cerr != nil {
				s.logg.Error(s.logg.WithPaymentIntentID(ctx, intentID), "cancelling orphaned payment intent", cerr)
			}
		}
		return nil, txErr
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id":        sessionID,
		"payment_intent_id": intentID,
		"total_cents":       totals.TotalCents,
	})
	s.logg.Info(ctx, "checkout started")
	return result, nil
}

// Cancel releases a session's reservations, deletes it, and best-effort
// cancels the gateway intent. A missing session is a no-op so the call is
// idempotent under sweeps, client retries, and late webhooks. The delete is
// the claim: it runs first inside the transaction, and the release only
// happens when this call removed the row. A competing webhook that read the
// same session before either committed deletes zero rows and backs off
// instead of releasing the reservations a second time.
func (s *Service) Cancel(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	var claimed bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var derr error
		claimed, derr = s.sessions.WithTx(tx).Delete(ctx, session.ID)
		if derr != nil {
			return derr
		}
		if !claimed {
			return nil
		}
		for _, line := range session.Reservations {
			if rerr := s.ledger.Release(ctx, tx, line.VariantID, line.Quantity); rerr != nil {
				return rerr
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !claimed {
		s.logg.Info(s.logg.WithField(ctx, "session_id", sessionID), "session claimed by a concurrent path, skipping release")
		return nil
	}

	if cerr := s.gateway.CancelIntent(ctx, session.PaymentIntentID); cerr != nil {
		s.logg.Error(s.logg.WithPaymentIntentID(ctx, session.PaymentIntentID), "cancelling payment intent", cerr)
	}

	s.logg.Info(s.logg.WithField(ctx, "session_id", sessionID), "checkout cancelled")
	return nil
}

// SweepExpired cancels every session past its expiry. Returns how many
// sessions were swept.
func (s *Service) SweepExpired(ctx context.Context, batch int) (int, error) {
	sessions, err := s.sessions.ListExpired(ctx, time.Now().UTC(), batch)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, session := range sessions {
		if cerr := s.Cancel(ctx, session.ID); cerr != nil {
			s.logg.Error(s.logg.WithField(ctx, "session_id", session.ID), "sweeping expired checkout session", cerr)
			continue
		}
		swept++
	}
	return swept, nil
}

// validateAndPrice checks every cart line against the live catalog and
// reprices it. Stale or inactive lines fail the whole checkout with enough
// detail for the client to prompt removal.
func (s *Service) validateAndPrice(ctx context.Context, cartRecord *models.Cart) ([]types.SessionLineItem, []types.ReservedLine, int, error) {
	ids := make([]uuid.UUID, 0, len(cartRecord.Lines))
	for _, line := range cartRecord.Lines {
		ids = append(ids, line.VariantID)
	}
	details, err := s.catalog.GetVariantDetails(ctx, ids)
	if err != nil {
		return nil, nil, 0, err
	}

	var offending []map[string]any
	lineItems := make([]types.SessionLineItem, 0, len(cartRecord.Lines))
	reservations := make([]types.ReservedLine, 0, len(cartRecord.Lines))
	subtotal := 0

	for _, line := range cartRecord.Lines {
		detail, ok := details[line.VariantID]
		if !ok || !detail.Sellable() {
			entry := map[string]any{"line_id": line.ID, "variant_id": line.VariantID}
			if ok {
				entry["sku"] = detail.Variant.SKU
			}
			offending = append(offending, entry)
			continue
		}

		unitPrice := detail.EffectivePriceCents()
		lineItems = append(lineItems, types.SessionLineItem{
			VariantID:      line.VariantID,
			ProductID:      detail.Product.ID,
			SKU:            detail.Variant.SKU,
			Name:           detail.Product.Title,
			Quantity:       line.Quantity,
			UnitPriceCents: unitPrice,
		})
		reservations = append(reservations, types.ReservedLine{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		})
		subtotal += unitPrice * line.Quantity
	}

	if len(offending) > 0 {
		return nil, nil, 0, pkgerrors.New(pkgerrors.CodeCartInvalid, "cart contains unavailable items").
			WithDetails(map[string]any{"lines": offending})
	}
	return lineItems, reservations, subtotal, nil
}
