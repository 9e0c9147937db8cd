package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CustomerTokenPayload captures the data available when minting a customer
// access token. Issuance lives with the identity provider; this exists for
// local tooling and tests.
type CustomerTokenPayload struct {
	CustomerID uuid.UUID
	Email      string
	Name       string
}

// CustomerClaims is the typed JWT presented by logged-in customers.
type CustomerClaims struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	jwt.RegisteredClaims
}
