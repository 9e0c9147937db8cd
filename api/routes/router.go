package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucasreyna/shopmate-backend/api/controllers"
	webhookcontrollers "github.com/lucasreyna/shopmate-backend/api/controllers/webhooks"
	"github.com/lucasreyna/shopmate-backend/api/middleware"
	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/stripe"
)

// Deps carries the wired services the router exposes.
type Deps struct {
	DB            controllers.Pinger
	Redis         controllers.Pinger
	Cart          controllers.CartService
	Checkout      controllers.CheckoutService
	Orders        controllers.OrdersService
	Catalog       controllers.CatalogService
	StripeClient  *stripe.Client
	StripeWebhook webhookcontrollers.StripeWebhookService
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	// Raw body route: signature verification reads the exact bytes Stripe
	// signed, so no body-touching middleware goes here.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Cart, logg))
				r.Delete("/", controllers.CartClear(deps.Cart, logg))
				r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
				r.Post("/merge", controllers.CartMerge(deps.Cart, logg))
				r.Patch("/items/{lineID}", controllers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{lineID}", controllers.CartRemoveItem(deps.Cart, logg))
			})

			r.Post("/checkout", controllers.CheckoutStart(deps.Checkout, logg))
			r.Delete("/checkout/{sessionID}", controllers.CheckoutCancel(deps.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(deps.Orders, logg))
				r.Get("/{orderID}", controllers.OrderDetail(deps.Orders, logg))
				r.Post("/{orderID}/status", controllers.OrderTransition(deps.Orders, logg))
			})
		})

		r.Route("/variants", func(r chi.Router) {
			r.Get("/{variantID}/availability", controllers.VariantAvailability(deps.Catalog, logg))
			r.Post("/{variantID}/stock", controllers.VariantAdjustStock(deps.Catalog, logg))
		})
	})

	return r
}
