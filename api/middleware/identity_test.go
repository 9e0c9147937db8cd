package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/lucasreyna/shopmate-backend/pkg/auth"
	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/types"
)

func identityProbe(captured *types.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityBearerToken(t *testing.T) {
	t.Parallel()

	cfg := config.JWTConfig{Secret: "test-secret", Issuer: "shopmate"}
	customerID := uuid.New()
	token, err := pkgauth.MintCustomerToken(cfg, time.Now(), time.Hour, pkgauth.CustomerTokenPayload{
		CustomerID: customerID,
		Email:      "buyer@example.com",
		Name:       "Buyer",
	})
	require.NoError(t, err)

	var captured types.Identity
	handler := Identity(cfg, nil)(identityProbe(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured.CustomerID)
	assert.Equal(t, customerID, *captured.CustomerID)
	assert.Equal(t, "buyer@example.com", captured.Email)
}

func TestIdentityRejectsBadToken(t *testing.T) {
	t.Parallel()

	cfg := config.JWTConfig{Secret: "test-secret", Issuer: "shopmate"}
	var captured types.Identity
	handler := Identity(cfg, nil)(identityProbe(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentitySessionTokenFallback(t *testing.T) {
	t.Parallel()

	cfg := config.JWTConfig{Secret: "test-secret", Issuer: "shopmate"}
	var captured types.Identity
	handler := Identity(cfg, nil)(identityProbe(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Session-Token", "sess_abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, captured.CustomerID)
	assert.Equal(t, "sess_abc123", captured.SessionToken)
}

func TestRequireIdentityBlocksAnonymous(t *testing.T) {
	t.Parallel()

	var captured types.Identity
	handler := RequireIdentity(nil)(identityProbe(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
