package types

import "github.com/google/uuid"

// Identity is the resolved cart owner for a request: an authenticated
// customer or an anonymous session token. Exactly one side is set.
type Identity struct {
	CustomerID   *uuid.UUID
	SessionToken string
	Email        string
	Name         string
}

// Anonymous reports whether the identity is session-token based.
func (i Identity) Anonymous() bool {
	return i.CustomerID == nil
}

// Valid reports whether the identity can own a cart.
func (i Identity) Valid() bool {
	return i.CustomerID != nil || i.SessionToken != ""
}
