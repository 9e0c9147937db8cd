package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/lucasreyna/shopmate-backend/api/responses"
	"github.com/lucasreyna/shopmate-backend/api/validators"
	catalogsvc "github.com/lucasreyna/shopmate-backend/internal/catalog"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
)

// CatalogService is the variant surface the controllers depend on.
type CatalogService interface {
	Availability(ctx context.Context, variantID uuid.UUID) (*catalogsvc.Availability, error)
	AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (int, error)
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type adjustStockResponse struct {
	VariantID uuid.UUID `json:"variant_id"`
	OnHand    int       `json:"on_hand"`
}

// VariantAvailability reports the sellable quantity for a variant.
func VariantAvailability(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		variantID, err := uuidParam(r, "variantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := svc.Availability(r.Context(), variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

// VariantAdjustStock applies a signed on-hand delta. Deltas that would push
// on-hand under the reserved count are rejected.
func VariantAdjustStock(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		variantID, err := uuidParam(r, "variantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		onHand, err := svc.AdjustStock(r.Context(), variantID, payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustStockResponse{VariantID: variantID, OnHand: onHand})
	}
}
