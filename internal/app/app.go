// Package app assembles the service: configuration, logging, telemetry,
// store, protocol components, router and HTTP server lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"licensegate/internal/config"
	"licensegate/internal/infrastructure"
	"licensegate/internal/license"
	"licensegate/internal/middleware"
	"licensegate/internal/services"
	"licensegate/internal/store"
	handlers "licensegate/internal/transport/http"
)

// Version is the service version reported by the health endpoint. Overridden
// at build time via -ldflags.
var Version = "dev"

// Application is the assembled service.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Router    *chi.Mux
	Server    *http.Server
	Store     store.Store
	Service   services.LicenseService
	telemetry *infrastructure.Telemetry
}

// NewApplication wires all components from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger := infrastructure.NewLogger(cfg.Logging)

	telemetry, err := infrastructure.NewTelemetry()
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}
	metrics, err := license.NewMetrics(telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var verifier *license.Verifier
	if cfg.Security.SigningSecret != "" {
		verifier = license.NewVerifier(cfg.Security.SigningSecret)
	}

	service := services.NewLicenseService(services.Options{
		Store:    st,
		Verifier: verifier,
		Delayer: &license.JitterDelayer{
			Min: cfg.Security.DelayMin,
			Max: cfg.Security.DelayMax,
		},
		Metrics:          metrics,
		Logger:           logger,
		RequireSignature: cfg.Security.RequireSignature,
	})

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Service:   service,
		telemetry: telemetry,
	}
	app.Router = app.setupRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return store.NewBunStore(cfg.DSN)
	}
}

func (a *Application) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(middleware.Recoverer(a.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(a.Config.Security.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(a.Config.Server.RequestTimeout))

	if a.Config.Security.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		)
		r.Use(limiter.Handler)
	}

	licenseHandler := handlers.NewLicenseHandler(a.Service, a.Logger)
	adminHandler := handlers.NewAdminHandler(a.Store, a.Config.Security.AdminToken, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.Store, Version)

	var activateMiddlewares []func(http.Handler) http.Handler
	if a.Config.Security.RateLimit.PerIPEnabled {
		perIP := middleware.NewPerIPRateLimiter(
			a.Config.Security.RateLimit.PerIPRPS,
			a.Config.Security.RateLimit.PerIPBurst,
			a.Logger,
		)
		activateMiddlewares = append(activateMiddlewares, perIP.Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Mount("/license", licenseHandler.Routes(activateMiddlewares...))
		r.Mount("/admin", adminHandler.Routes())
	})
	r.Get("/healthz", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", handlers.MetricsHandler())

	return r
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully within the configured timeout.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("server starting",
		slog.String("addr", a.Server.Addr),
		slog.String("version", Version),
		slog.String("store_driver", a.Config.Store.Driver),
		slog.Bool("signature_required", a.Config.Security.RequireSignature),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown drains in-flight requests and releases resources.
func (a *Application) Shutdown() error {
	a.Logger.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	err := a.Server.Shutdown(ctx)
	if terr := a.telemetry.Shutdown(ctx); err == nil {
		err = terr
	}
	if cerr := a.Store.Close(); err == nil {
		err = cerr
	}

	a.Logger.Info("server stopped")
	return err
}
