package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasreyna/shopmate-backend/internal/catalog"
	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns cart reads and mutations for a resolved identity. Carts are
// created lazily on first add and expire on a sliding window refreshed by
// every mutation.
type Service struct {
	repo    *Repository
	catalog *catalog.Repository
	tx      TxRunner
	cfg     config.CartConfig
	logg    *logger.Logger
}

func NewService(repo *Repository, catalogRepo *catalog.Repository, tx TxRunner, cfg config.CartConfig, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{repo: repo, catalog: catalogRepo, tx: tx, cfg: cfg, logg: logg}, nil
}

// LineView is the client-facing rendering of one cart line.
type LineView struct {
	LineID             uuid.UUID `json:"line_id"`
	VariantID          uuid.UUID `json:"variant_id"`
	ProductID          uuid.UUID `json:"product_id"`
	SKU                string    `json:"sku"`
	Name               string    `json:"name"`
	Quantity           int       `json:"quantity"`
	PriceSnapshotCents int       `json:"price_snapshot_cents"`
	Available          int       `json:"available"`
	Sellable           bool      `json:"sellable"`
	AddedAt            time.Time `json:"added_at"`
}

// View is the client-facing cart.
type View struct {
	CartID        uuid.UUID  `json:"cart_id"`
	Lines         []LineView `json:"lines"`
	SubtotalCents int        `json:"subtotal_cents"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

// Get returns the identity's cart. An absent or expired cart renders as an
// empty view.
func (s *Service) Get(ctx context.Context, identity types.Identity) (*View, error) {
	cart, err := s.resolveLive(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &View{Lines: []LineView{}}, nil
	}
	return s.render(ctx, cart)
}

// AddItem validates the variant, lazily creates the cart, and upserts the
// line. Re-adding a variant increments the existing line's quantity and
// refreshes its price snapshot.
func (s *Service) AddItem(ctx context.Context, identity types.Identity, variantID uuid.UUID, qty int) (*View, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart identity required")
	}
	if qty < 1 || qty > s.cfg.MaxQtyPerAdd {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
			WithDetails(map[string]any{"min": 1, "max": s.cfg.MaxQtyPerAdd})
	}

	detail, err := s.catalog.GetVariantDetail(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if !detail.Sellable() {
		return nil, pkgerrors.New(pkgerrors.CodeCartInvalid, "variant is not available for sale").
			WithDetails(map[string]any{"variant_id": variantID, "sku": detail.Variant.SKU})
	}

	cart, err := s.resolveLive(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{
			ID:        uuid.New(),
			ExpiresAt: time.Now().UTC().Add(s.cfg.TTL),
		}
		if identity.CustomerID != nil {
			cart.CustomerID = identity.CustomerID
		} else {
			token := identity.SessionToken
			cart.SessionToken = &token
		}
		if err := s.repo.Create(ctx, cart); err != nil {
			return nil, err
		}
	}

	line, err := s.repo.FindLineByVariant(ctx, cart.ID, variantID)
	if err != nil {
		return nil, err
	}
	if line != nil {
		if err := s.repo.UpdateLineQuantity(ctx, line.ID, line.Quantity+qty); err != nil {
			return nil, err
		}
	} else {
		line = &models.CartLine{
			ID:                 uuid.New(),
			CartID:             cart.ID,
			VariantID:          variantID,
			ProductID:          detail.Product.ID,
			Quantity:           qty,
			PriceSnapshotCents: detail.EffectivePriceCents(),
			AddedAt:            time.Now().UTC(),
		}
		if err := s.repo.CreateLine(ctx, line); err != nil {
			return nil, err
		}
	}

	if err := s.slide(ctx, cart); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}

// UpdateItem sets a line's quantity.
func (s *Service) UpdateItem(ctx context.Context, identity types.Identity, lineID uuid.UUID, qty int) (*View, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.requireCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	line, err := s.repo.FindLine(ctx, cart.ID, lineID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if err := s.repo.UpdateLineQuantity(ctx, line.ID, qty); err != nil {
		return nil, err
	}
	if err := s.slide(ctx, cart); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, identity types.Identity, lineID uuid.UUID) (*View, error) {
	cart, err := s.requireCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	line, err := s.repo.FindLine(ctx, cart.ID, lineID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if err := s.repo.DeleteLine(ctx, line.ID); err != nil {
		return nil, err
	}
	if err := s.slide(ctx, cart); err != nil {
		return nil, err
	}
	return s.reload(ctx, cart.ID)
}

// Clear deletes the identity's cart entirely. Idempotent.
func (s *Service) Clear(ctx context.Context, identity types.Identity) error {
	cart, err := s.resolveLive(ctx, identity)
	if err != nil {
		return err
	}
	if cart == nil {
		return nil
	}
	return s.repo.Delete(ctx, cart.ID)
}

// Merge folds an anonymous session cart into the customer's cart at login.
// Quantities for shared variants are summed; the customer cart's snapshots
// win. The session cart is deleted afterwards.
func (s *Service) Merge(ctx context.Context, sessionToken string, customerID uuid.UUID) error {
	if sessionToken == "" {
		return nil
	}

	guest, err := s.resolveLive(ctx, types.Identity{SessionToken: sessionToken})
	if err != nil {
		return err
	}
	if guest == nil {
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		target, terr := repo.FindByIdentity(ctx, types.Identity{CustomerID: &customerID})
		if terr != nil {
			return terr
		}
		if target == nil {
			target = &models.Cart{
				ID:         uuid.New(),
				CustomerID: &customerID,
				ExpiresAt:  time.Now().UTC().Add(s.cfg.TTL),
			}
			if terr := repo.Create(ctx, target); terr != nil {
				return terr
			}
		}

		for _, line := range guest.Lines {
			existing, terr := repo.FindLineByVariant(ctx, target.ID, line.VariantID)
			if terr != nil {
				return terr
			}
			if existing != nil {
				if terr := repo.UpdateLineQuantity(ctx, existing.ID, existing.Quantity+line.Quantity); terr != nil {
					return terr
				}
				continue
			}
			moved := models.CartLine{
				ID:                 uuid.New(),
				CartID:             target.ID,
				VariantID:          line.VariantID,
				ProductID:          line.ProductID,
				Quantity:           line.Quantity,
				PriceSnapshotCents: line.PriceSnapshotCents,
				AddedAt:            line.AddedAt,
			}
			if terr := repo.CreateLine(ctx, &moved); terr != nil {
				return terr
			}
		}

		if terr := repo.Delete(ctx, guest.ID); terr != nil {
			return terr
		}
		return repo.Touch(ctx, target.ID, time.Now().UTC().Add(s.cfg.TTL))
	})
}

// PurgeExpired deletes carts past their expiry. Returns how many were
// removed. Expired carts are already invisible to their owners; this frees
// the rows their abandonment left behind.
func (s *Service) PurgeExpired(ctx context.Context, batch int) (int, error) {
	ids, err := s.repo.ListExpiredIDs(ctx, time.Now().UTC(), batch)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, id := range ids {
		if derr := s.repo.Delete(ctx, id); derr != nil {
			s.logg.Error(s.logg.WithField(ctx, "cart_id", id), "purging expired cart", derr)
			continue
		}
		purged++
	}
	return purged, nil
}

// resolveLive returns the identity's cart, treating an expired cart as
// absent and deleting it opportunistically.
func (s *Service) resolveLive(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart identity required")
	}
	cart, err := s.repo.FindByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, nil
	}
	if time.Now().UTC().After(cart.ExpiresAt) {
		if derr := s.repo.Delete(ctx, cart.ID); derr != nil {
			s.logg.Error(ctx, "deleting expired cart", derr)
		}
		return nil, nil
	}
	return cart, nil
}

func (s *Service) requireCart(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	cart, err := s.resolveLive(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return cart, nil
}

func (s *Service) slide(ctx context.Context, cart *models.Cart) error {
	return s.repo.Touch(ctx, cart.ID, time.Now().UTC().Add(s.cfg.TTL))
}

func (s *Service) reload(ctx context.Context, cartID uuid.UUID) (*View, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &View{Lines: []LineView{}}, nil
	}
	return s.render(ctx, cart)
}

func (s *Service) render(ctx context.Context, cart *models.Cart) (*View, error) {
	ids := make([]uuid.UUID, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		ids = append(ids, line.VariantID)
	}
	details, err := s.catalog.GetVariantDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &View{
		CartID:    cart.ID,
		Lines:     make([]LineView, 0, len(cart.Lines)),
		ExpiresAt: cart.ExpiresAt,
	}
	for _, line := range cart.Lines {
		lv := LineView{
			LineID:             line.ID,
			VariantID:          line.VariantID,
			ProductID:          line.ProductID,
			Quantity:           line.Quantity,
			PriceSnapshotCents: line.PriceSnapshotCents,
			AddedAt:            line.AddedAt,
		}
		if detail, ok := details[line.VariantID]; ok {
			lv.SKU = detail.Variant.SKU
			lv.Name = detail.Product.Title
			lv.Available = detail.Variant.Available()
			lv.Sellable = detail.Sellable()
		}
		view.Lines = append(view.Lines, lv)
		view.SubtotalCents += line.PriceSnapshotCents * line.Quantity
	}
	return view, nil
}
