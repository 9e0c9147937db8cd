package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/lucasreyna/shopmate-backend/api/middleware"
	"github.com/lucasreyna/shopmate-backend/api/responses"
	"github.com/lucasreyna/shopmate-backend/api/validators"
	checkoutsvc "github.com/lucasreyna/shopmate-backend/internal/checkout"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

// CheckoutService is the checkout surface the controllers depend on.
type CheckoutService interface {
	Start(ctx context.Context, identity types.Identity, req checkoutsvc.StartRequest) (*checkoutsvc.StartResult, error)
	Cancel(ctx context.Context, sessionID uuid.UUID) error
}

type checkoutStartRequest struct {
	ShippingAddress types.Address `json:"shipping_address" validate:"required"`
	BuyerEmail      string        `json:"buyer_email" validate:"omitempty,email"`
	BuyerName       string        `json:"buyer_name" validate:"omitempty,max=200"`
}

// CheckoutStart opens a checkout session for the identity's cart. Guests
// must supply a buyer email; logged-in customers default to their own.
func CheckoutStart(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())

		var payload checkoutStartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := payload.BuyerEmail
		if email == "" {
			email = identity.Email
		}
		if email == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "buyer_email is required"))
			return
		}
		name := payload.BuyerName
		if name == "" {
			name = identity.Name
		}

		result, err := svc.Start(r.Context(), identity, checkoutsvc.StartRequest{
			ShippingAddress: payload.ShippingAddress,
			BuyerEmail:      email,
			BuyerName:       name,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutCancel abandons a checkout session. Safe to repeat.
func CheckoutCancel(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		sessionID, err := uuidParam(r, "sessionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
