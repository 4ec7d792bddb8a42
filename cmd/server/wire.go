//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"rehearsal-api/internal/config"
	"rehearsal-api/internal/domain/principal"
	"rehearsal-api/internal/domain/rooms"
	"rehearsal-api/internal/domain/session"
	"rehearsal-api/internal/domain/song"
	"rehearsal-api/internal/infrastructure/auth"
	"rehearsal-api/internal/infrastructure/catalog"
	"rehearsal-api/internal/interfaces/httpserver"
	"rehearsal-api/internal/interfaces/wsgateway"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	ProvideResolver,
	ProvideSessionStore,
	ProvideCatalog,
	rooms.NewRegistry,

	// Domain providers
	ProvideManager,
	ProvideSweeper,

	// Interface providers
	wsgateway.New,
	httpserver.New,

	// Application
	NewApplication,
)

// ProvideResolver provides a principal resolver.
func ProvideResolver(ctx context.Context, cfg *config.Config, log zerolog.Logger) (principal.Resolver, error) {
	return auth.NewResolver(ctx, cfg, log)
}

// ProvideSessionStore provides a session store for the configured backend.
func ProvideSessionStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (session.Store, error) {
	return newSessionStore(ctx, cfg, log)
}

// ProvideCatalog provides the song catalog client.
func ProvideCatalog(cfg *config.Config, log zerolog.Logger) song.Catalog {
	return catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, log)
}

// ProvideManager provides the session manager.
func ProvideManager(
	sessionStore session.Store,
	songCatalog song.Catalog,
	registry *rooms.Registry,
	cfg *config.Config,
	log zerolog.Logger,
) *session.Manager {
	return session.NewManager(sessionStore, songCatalog, registry, cfg.StoreTimeout, log)
}

// ProvideSweeper provides the reconciliation sweeper.
func ProvideSweeper(
	sessionStore session.Store,
	manager *session.Manager,
	cfg *config.Config,
	log zerolog.Logger,
) *session.Sweeper {
	return session.NewSweeper(sessionStore, manager, cfg.SweepInterval, cfg.MemberGraceTTL, log)
}

// CreateApplication creates the application with all dependencies wired.
func CreateApplication(
	ctx context.Context,
	cfg *config.Config,
	log zerolog.Logger,
) (*Application, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
