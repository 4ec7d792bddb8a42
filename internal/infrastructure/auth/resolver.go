// Package auth resolves connection credentials into principals by
// validating JWTs against a JWKS endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"rehearsal-api/internal/config"
	"rehearsal-api/internal/domain/principal"
)

// adminRole is the realm role that marks a principal as an admin.
const adminRole = "rehearsal-admin"

// Resolver validates handshake tokens and produces principals.
// With auth disabled it still parses the token but skips signature
// verification, which keeps a single claims-mapping path for local
// development.
type Resolver struct {
	cfg  *config.Config
	log  zerolog.Logger
	jwks atomic.Pointer[keyfunc.JWKS]
}

var _ principal.Resolver = (*Resolver)(nil)

// NewResolver initialises JWKS fetching when auth is enabled.
func NewResolver(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Resolver, error) {
	r := &Resolver{
		cfg: cfg,
		log: log.With().Str("component", "principal-resolver").Logger(),
	}
	if !cfg.AuthEnabled {
		r.log.Warn().Msg("auth disabled, tokens are parsed without signature verification")
		return r, nil
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			r.log.Error().Err(err).Msg("jwks refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	r.jwks.Store(jwks)
	return r, nil
}

// Resolve validates the credential token and derives the immutable
// principal for the connection. Any failure is terminal for the
// connection; no partial state is created.
func (r *Resolver) Resolve(ctx context.Context, token string) (*principal.Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing token", principal.ErrUnauthenticated)
	}

	claims, err := r.parseClaims(token)
	if err != nil {
		r.log.Debug().Err(err).Msg("token validation failed")
		return nil, fmt.Errorf("%w: %v", principal.ErrUnauthenticated, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: sub claim missing", principal.ErrUnauthenticated)
	}

	name, _ := claims["name"].(string)
	if name == "" {
		name, _ = claims["preferred_username"].(string)
	}
	if name == "" {
		name = sub
	}
	instrument, _ := claims["instrument"].(string)

	return &principal.Principal{
		UserID:      sub,
		DisplayName: name,
		Instrument:  instrument,
		IsAdmin:     hasAdminRole(claims),
	}, nil
}

func (r *Resolver) parseClaims(token string) (jwt.MapClaims, error) {
	if !r.cfg.AuthEnabled {
		claims := jwt.MapClaims{}
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		return claims, nil
	}

	jwks := r.jwks.Load()
	if jwks == nil {
		return nil, errors.New("jwks not initialised")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	parsed, err := parser.ParseWithClaims(token, jwt.MapClaims{}, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	if iss, _ := claims["iss"].(string); iss != r.cfg.AuthIssuer {
		return nil, fmt.Errorf("issuer mismatch %q", iss)
	}
	if err := checkAudience(claims, r.cfg.AuthAudience); err != nil {
		return nil, err
	}

	return claims, nil
}

func checkAudience(claims jwt.MapClaims, audience string) error {
	raw, ok := claims["aud"]
	if !ok {
		return errors.New("aud claim missing")
	}
	switch val := raw.(type) {
	case string:
		if val != audience {
			return errors.New("audience mismatch")
		}
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok && s == audience {
				return nil
			}
		}
		return errors.New("audience mismatch")
	default:
		return fmt.Errorf("aud claim unsupported type %T", val)
	}
	return nil
}

func hasAdminRole(claims jwt.MapClaims) bool {
	// Either an explicit boolean claim or the realm role grants admin.
	if admin, ok := claims["admin"].(bool); ok && admin {
		return true
	}
	realmAccess, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return false
	}
	roles, ok := realmAccess["roles"].([]interface{})
	if !ok {
		return false
	}
	for _, role := range roles {
		if s, ok := role.(string); ok && s == adminRole {
			return true
		}
	}
	return false
}
