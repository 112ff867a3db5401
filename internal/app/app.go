package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/settlepulse/config"
	"github.com/guttosm/settlepulse/internal/api"
)

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to PostgreSQL using InitPostgres() and applies migrations.
//   - Builds repositories, the ranked price source and the ledger service.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources.
//
// Provider sessions are not opened here; callers decide when to call
// Source.ConnectAll.
//
// Returns:
//   - *gin.Engine: the configured Gin HTTP router.
//   - *Services: the wired services, for callers that need the price source.
//   - func(): cleanup function to be executed on shutdown.
//   - error: any initialization error that occurred.
func InitializeApp() (*gin.Engine, *Services, func(), error) {
	cfg := config.AppConfig

	conn, err := postgresOpener(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	if err := migrator(conn); err != nil {
		_ = conn.Close()
		return nil, nil, nil, err
	}

	svcs, err := NewServices(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, nil, nil, err
	}

	opts := api.DefaultRouterOptions()
	if cfg.Server.RequestTimeout > 0 {
		opts.RequestTimeout = cfg.Server.RequestTimeout
	}
	if cfg.Server.RateEvery > 0 && cfg.Server.RateBurst > 0 {
		opts.RateEvery, opts.RateBurst = cfg.Server.RateEvery, cfg.Server.RateBurst
	}
	router := api.NewRouter(api.NewHandler(svcs.Ledger), opts)

	api.NewHealthHandler(conn.PingContext, svcs.Source.Providers()...).Register(router)

	cleanup := func() {
		_ = conn.Close()
	}

	return router, svcs, cleanup, nil
}
