package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"rehearsal-api/internal/config"
	"rehearsal-api/internal/domain/rooms"
	"rehearsal-api/internal/domain/session"
	"rehearsal-api/internal/infrastructure/auth"
	"rehearsal-api/internal/infrastructure/catalog"
	"rehearsal-api/internal/infrastructure/logger"
	"rehearsal-api/internal/infrastructure/observability"
	"rehearsal-api/internal/infrastructure/store"
	"rehearsal-api/internal/interfaces/httpserver"
	"rehearsal-api/internal/interfaces/wsgateway"
)

// Application holds the main application components.
type Application struct {
	httpServer *httpserver.HTTPServer
	sweeper    *session.Sweeper
	log        zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(httpServer *httpserver.HTTPServer, sweeper *session.Sweeper, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		sweeper:    sweeper,
		log:        log,
	}
}

// Start runs the application.
func (a *Application) Start(ctx context.Context) error {
	a.sweeper.Start(ctx)

	// Run HTTP server (blocks until context cancelled)
	err := a.httpServer.Run(ctx)

	a.sweeper.Stop()

	return err
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup observability
	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	// Initialize principal resolver
	resolver, err := auth.NewResolver(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize principal resolver")
	}

	// Initialize session store
	sessionStore, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session store")
	}

	// Initialize song catalog client
	songCatalog := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, log)

	// Initialize room registry and session manager
	registry := rooms.NewRegistry()
	manager := session.NewManager(sessionStore, songCatalog, registry, cfg.StoreTimeout, log)

	// Initialize reconciliation sweeper
	sweeper := session.NewSweeper(sessionStore, manager, cfg.SweepInterval, cfg.MemberGraceTTL, log)

	// Initialize WebSocket gateway and HTTP server
	gateway := wsgateway.New(resolver, manager, log)
	httpServer := httpserver.New(cfg, log, gateway)

	app := NewApplication(httpServer, sweeper, log)

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("store", cfg.StoreBackend).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func newSessionStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (session.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		return store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, log)
	default:
		return store.NewMemoryStore(log), nil
	}
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
