// Package principal defines the authenticated identity attached to a
// connection and the contract for resolving it from a credential token.
package principal

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when a credential token is missing,
// malformed, expired, or fails verification.
var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the immutable identity bound to one connection.
// It is re-derived on every new connection and never mutated afterwards.
type Principal struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Instrument  string `json:"instrument"`
	IsAdmin     bool   `json:"is_admin"`
}

// Resolver validates a handshake credential and produces a Principal.
// Resolution must complete before any command from the connection is
// accepted; failure is terminal for the connection.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
}
