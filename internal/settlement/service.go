package settlement

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/internal/cart"
	"github.com/lucasreyna/shopmate-backend/internal/catalog"
	"github.com/lucasreyna/shopmate-backend/internal/checkout"
	"github.com/lucasreyna/shopmate-backend/internal/inventory"
	"github.com/lucasreyna/shopmate-backend/internal/orders"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	"github.com/lucasreyna/shopmate-backend/pkg/enums"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

// Event kinds the settlement handler consumes.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
)

const lowStockThreshold = 5

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier fires a delivery without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, kind enums.NotificationKind, recipient string, payload map[string]any)
}

// Service converts verified gateway events into orders or compensating
// reservation releases. Settlement is the only path that permanently
// decrements on-hand stock.
type Service struct {
	sessions *checkout.Repository
	orders   *orders.Repository
	carts    *cart.Repository
	catalog  *catalog.Repository
	ledger   inventory.Ledger
	tx       TxRunner
	notifier Notifier
	logg     *logger.Logger
}

func NewService(
	sessions *checkout.Repository,
	ordersRepo *orders.Repository,
	carts *cart.Repository,
	catalogRepo *catalog.Repository,
	ledger inventory.Ledger,
	tx TxRunner,
	notifier Notifier,
	logg *logger.Logger,
) (*Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository is required")
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
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		sessions: sessions,
		orders:   ordersRepo,
		carts:    carts,
		catalog:  catalogRepo,
		ledger:   ledger,
		tx:       tx,
		notifier: notifier,
		logg:     logg,
	}, nil
}

// HandleEvent dispatches a verified gateway event. Unknown kinds are
// acknowledged without side effects.
func (s *Service) HandleEvent(ctx context.Context, eventType, intentID string) error {
	ctx = s.logg.WithPaymentIntentID(ctx, intentID)

	switch eventType {
	case EventPaymentSucceeded:
		return s.handleSucceeded(ctx, intentID)
	case EventPaymentFailed, EventPaymentCanceled:
		return s.handleFailed(ctx, intentID)
	default:
		s.logg.Info(s.logg.WithField(ctx, "event_type", eventType), "ignoring gateway event")
		return nil
	}
}

// handleSucceeded finalizes a paid checkout: order creation, permanent
// inventory deduction, cart clear, session removal, and downstream
// notifications. Failures after the money moved are logged for operator
// reconciliation and acknowledged, never bounced back to the gateway.
func (s *Service) handleSucceeded(ctx context.Context, intentID string) error {
	exists, err := s.orders.ExistsByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if exists {
		s.logg.Info(ctx, "duplicate payment event for settled intent, skipping")
		return nil
	}

	session, err := s.sessions.FindByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if session == nil {
		s.logg.Error(ctx, "payment captured with no matching checkout session, manual reconciliation required", nil)
		return nil
	}

	var (
		order   *models.Order
		claimed bool
	)
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// Deleting the session is the claim on its reservations. A cancel
		// that got between the lookup above and this transaction already
		// released them; creating an order on top would deduct stock the
		// buyer no longer holds.
		var terr error
		claimed, terr = s.sessions.WithTx(tx).Delete(ctx, session.ID)
		if terr != nil {
			return terr
		}
		if !claimed {
			return nil
		}

		number, terr := nextOrderNumber(ctx, tx, time.Now())
		if terr != nil {
			return terr
		}

		now := time.Now().UTC()
		order = &models.Order{
			OrderNumber:           number,
			StripePaymentIntentID: intentID,
			CustomerID:            session.CustomerID,
			BuyerEmail:            session.BuyerEmail,
			BuyerName:             session.BuyerName,
			Status:                enums.OrderStatusPending,
			PaymentStatus:         enums.PaymentStatusPaid,
			ShippingAddress:       session.ShippingAddress,
			SubtotalCents:         session.SubtotalCents,
			ShippingCents:         session.ShippingCents,
			TaxCents:              session.TaxCents,
			TotalCents:            session.TotalCents,
			PaidAt:                &now,
		}
		for _, item := range session.LineItems {
			variantID := item.VariantID
			productID := item.ProductID
			order.Items = append(order.Items, models.OrderItem{
				VariantID:      &variantID,
				ProductID:      &productID,
				SKU:            item.SKU,
				Name:           item.Name,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
				TotalCents:     item.UnitPriceCents * item.Quantity,
			})
		}
		if terr := s.orders.WithTx(tx).Create(ctx, order); terr != nil {
			return terr
		}

		for _, line := range session.Reservations {
			if terr := s.ledger.Deduct(ctx, tx, line.VariantID, line.Quantity); terr != nil {
				return terr
			}
		}

		return s.carts.WithTx(tx).Delete(ctx, session.CartID)
	})
	if txErr != nil {
		if pkgerrors.IsUniqueViolation(txErr, "uq_orders_payment_intent") {
			s.logg.Info(ctx, "concurrent settlement already created the order, skipping")
			return nil
		}
		s.logg.Error(ctx, "settling captured payment failed, manual reconciliation required", txErr)
		return nil
	}
	if !claimed {
		s.logg.Error(ctx, "payment captured but the session was cancelled concurrently, manual reconciliation required", nil)
		return nil
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "order_number", order.OrderNumber), "order created from settled payment")

	s.notifier.Notify(ctx, enums.NotificationOrderConfirmation, session.BuyerEmail, map[string]any{
		"order_number": order.OrderNumber,
		"total_cents":  order.TotalCents,
	})
	s.notifier.Notify(ctx, enums.NotificationMerchantNewOrder, "merchant", map[string]any{
		"order_number": order.OrderNumber,
		"total_cents":  order.TotalCents,
	})
	s.alertLowStock(ctx, session)
	return nil
}

// handleFailed compensates a failed or canceled payment: reservations go
// back to available, the session is removed, no order is created. A missing
// session means the sweep or an explicit cancel got there first; if that
// happens between the lookup and the transaction, the delete claims zero
// rows and the release is skipped.
func (s *Service) handleFailed(ctx context.Context, intentID string) error {
	session, err := s.sessions.FindByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if session == nil {
		s.logg.Info(ctx, "no session for failed payment, nothing to release")
		return nil
	}

	var claimed bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		claimed, terr = s.sessions.WithTx(tx).Delete(ctx, session.ID)
		if terr != nil {
			return terr
		}
		if !claimed {
			return nil
		}
		for _, line := range session.Reservations {
			if terr := s.ledger.Release(ctx, tx, line.VariantID, line.Quantity); terr != nil {
				return terr
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !claimed {
		s.logg.Info(ctx, "session claimed by a concurrent cancel, nothing to release")
		return nil
	}

	s.logg.Info(ctx, "reservations released for failed payment")
	return nil
}

// alertLowStock fires a merchant alert for any settled variant left at or
// under the threshold. Read failures only skip the alert.
func (s *Service) alertLowStock(ctx context.Context, session *models.CheckoutSession) {
	for _, line := range session.Reservations {
		variant, err := s.catalog.GetVariant(ctx, line.VariantID)
		if err != nil {
			continue
		}
		if variant.Available() <= lowStockThreshold {
			s.notifier.Notify(ctx, enums.NotificationLowStockAlert, "merchant", map[string]any{
				"sku":       variant.SKU,
				"available": variant.Available(),
			})
		}
	}
}
