package middleware

import (
	"net/http"
	"strings"

	"github.com/lucasreyna/shopmate-backend/api/responses"
	pkgauth "github.com/lucasreyna/shopmate-backend/pkg/auth"
	"github.com/lucasreyna/shopmate-backend/pkg/config"
	pkgerrors "github.com/lucasreyna/shopmate-backend/pkg/errors"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

const sessionTokenHeader = "X-Session-Token"

// Identity resolves who the request acts for. A bearer token identifies a
// customer; otherwise the session header identifies an anonymous cart
// owner. Requests with neither pass through unauthenticated and fail later
// at the handlers that need an identity.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				claims, err := pkgauth.ParseCustomerToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				customerID := claims.CustomerID
				identity := types.Identity{
					CustomerID: &customerID,
					Email:      claims.Email,
					Name:       claims.Name,
				}
				ctx = WithIdentity(ctx, identity)
				if logg != nil {
					ctx = logg.WithField(ctx, "customer_id", customerID.String())
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if token := strings.TrimSpace(r.Header.Get(sessionTokenHeader)); token != "" {
				ctx = WithIdentity(ctx, types.Identity{SessionToken: token})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects requests that resolved to no identity at all.
func RequireIdentity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IdentityFromContext(r.Context()).Valid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
