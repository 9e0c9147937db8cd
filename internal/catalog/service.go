package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/internal/inventory"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes variant availability and merchant stock corrections.
type Service struct {
	repo   *Repository
	ledger inventory.Ledger
	tx     TxRunner
	logg   *logger.Logger
}

func NewService(repo *Repository, ledger inventory.Ledger, tx TxRunner, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{repo: repo, ledger: ledger, tx: tx, logg: logg}, nil
}

// Availability is the public stock snapshot for a variant. On-hand and
// reserved counts stay internal.
type Availability struct {
	VariantID uuid.UUID `json:"variant_id"`
	SKU       string    `json:"sku"`
	Available int       `json:"available"`
	Active    bool      `json:"active"`
}

func (s *Service) Availability(ctx context.Context, variantID uuid.UUID) (*Availability, error) {
	detail, err := s.repo.GetVariantDetail(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		VariantID: detail.Variant.ID,
		SKU:       detail.Variant.SKU,
		Available: detail.Variant.Available(),
		Active:    detail.Sellable(),
	}, nil
}

// AdjustStock applies a merchant correction to on-hand and returns the new
// count. Rejected when the result would undercut held reservations.
func (s *Service) AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (int, error) {
	var newOnHand int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		onHand, aerr := s.ledger.Adjust(ctx, tx, variantID, delta)
		if aerr != nil {
			return aerr
		}
		newOnHand = onHand
		return nil
	})
	if err != nil {
		return 0, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"variant_id": variantID,
		"delta":      delta,
		"on_hand":    newOnHand,
	})
	s.logg.Info(ctx, "stock adjusted")
	return newOnHand, nil
}
