package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/internal/inventory"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	"github.com/lucasreyna/shopmate-backend/pkg/enums"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/pagination"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier fires a delivery without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, kind enums.NotificationKind, recipient string, payload map[string]any)
}

// Service owns the order status machine. Cancellation restores stock inside
// the same transaction as the status flip, so a crash can't leave an order
// cancelled with its inventory still deducted.
type Service struct {
	repo     *Repository
	ledger   inventory.Ledger
	tx       TxRunner
	notifier Notifier
	logg     *logger.Logger
}

func NewService(repo *Repository, ledger inventory.Ledger, tx TxRunner, notifier Notifier, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository is required")
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
	return &Service{repo: repo, ledger: ledger, tx: tx, notifier: notifier, logg: logg}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*List, error) {
	return s.repo.List(ctx, params, filters)
}

// TransitionInput carries optional fields attached to specific transitions.
type TransitionInput struct {
	TrackingNumber *string
	Carrier        *string
	Notes          *string
}

// Transition moves an order to the requested status per the transition
// table, recording the per-status timestamp. Entering cancelled restores
// each line's quantity onto the variant's on-hand count.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus, input TransitionInput) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, terr := repo.FindByID(ctx, orderID)
		if terr != nil {
			return terr
		}

		if terr := checkTransition(order.Status, next); terr != nil {
			return terr
		}

		now := time.Now().UTC()
		order.Status = next
		switch next {
		case enums.OrderStatusProcessing:
			order.ProcessingAt = &now
		case enums.OrderStatusShipped:
			order.ShippedAt = &now
			if input.TrackingNumber != nil {
				order.TrackingNumber = input.TrackingNumber
			}
			if input.Carrier != nil {
				order.Carrier = input.Carrier
			}
		case enums.OrderStatusDelivered:
			order.DeliveredAt = &now
		case enums.OrderStatusCancelled:
			order.CancelledAt = &now
			for _, item := range order.Items {
				if item.VariantID == nil {
					continue
				}
				if rerr := s.ledger.Restore(ctx, tx, *item.VariantID, item.Quantity); rerr != nil {
					return rerr
				}
			}
		}
		if input.Notes != nil {
			order.Notes = input.Notes
		}

		if terr := repo.Save(ctx, order); terr != nil {
			return terr
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(s.logg.WithField(ctx, "status", next), "order status updated")

	if next == enums.OrderStatusShipped {
		payload := map[string]any{"order_number": updated.OrderNumber}
		if updated.TrackingNumber != nil {
			payload["tracking_number"] = *updated.TrackingNumber
		}
		if updated.Carrier != nil {
			payload["carrier"] = *updated.Carrier
		}
		s.notifier.Notify(ctx, enums.NotificationShippingUpdate, updated.BuyerEmail, payload)
	}
	return updated, nil
}

// Cancel is the customer/merchant-facing cancellation entry point.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, notes *string) (*models.Order, error) {
	return s.Transition(ctx, orderID, enums.OrderStatusCancelled, TransitionInput{Notes: notes})
}
