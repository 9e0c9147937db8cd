package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/lucasreyna/shopmate-backend/api/middleware"
	"github.com/lucasreyna/shopmate-backend/api/responses"
	"github.com/lucasreyna/shopmate-backend/api/validators"
	orderssvc "github.com/lucasreyna/shopmate-backend/internal/orders"
	"github.com/lucasreyna/shopmate-backend/pkg/db/models"
	"github.com/lucasreyna/shopmate-backend/pkg/enums"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/pagination"
)

// OrdersService is the order lifecycle surface the controllers depend on.
type OrdersService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters orderssvc.ListFilters) (*orderssvc.List, error)
	Transition(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus, input orderssvc.TransitionInput) (*models.Order, error)
}

type orderTransitionRequest struct {
	Status         string  `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
	TrackingNumber *string `json:"tracking_number,omitempty" validate:"omitempty,max=100"`
	Carrier        *string `json:"carrier,omitempty" validate:"omitempty,max=100"`
	Notes          *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// OrdersList returns orders newest-first with cursor pagination. Customers
// see their own orders only.
func OrdersList(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be an integer"))
				return
			}
			params.Limit = limit
		}

		filters := orderssvc.ListFilters{}
		if status := r.URL.Query().Get("status"); status != "" {
			if !enums.OrderStatus(status).Valid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status"))
				return
			}
			filters.Status = &status
		}
		if identity := middleware.IdentityFromContext(r.Context()); identity.CustomerID != nil {
			filters.CustomerID = identity.CustomerID
		}

		list, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func OrderDetail(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderTransition moves an order along the status machine. Tracking fields
// only apply when entering shipped.
func OrderTransition(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Transition(r.Context(), orderID, enums.OrderStatus(payload.Status), orderssvc.TransitionInput{
			TrackingNumber: payload.TrackingNumber,
			Carrier:        payload.Carrier,
			Notes:          payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
