package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "vedtak/docs" // This is for Swagger
	"vedtak/internal/auth"
	"vedtak/internal/bootstrap"
	"vedtak/internal/handlers"
	"vedtak/internal/middleware"
	"vedtak/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
)

// @title Vedtak API
// @version 1.0
// @description Decision lifecycle, timeline reconciliation and automatic runs for survivor benefit cases

// @contact.name Team Vedtak

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (Vault secrets included)
	cfg, vaultClient, err := bootstrap.LoadConfig(ctx)
	if err != nil {
		return err
	}

	// Setup structured logger
	bootstrap.SetupLogger(cfg)

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	app, err := bootstrap.New(ctx, cfg, vaultClient)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	// Initialize middleware
	var verifier middleware.TokenVerifier
	if cfg.Auth.Enabled {
		v, err := auth.NewVerifier(&cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize token verifier: %w", err)
		}
		verifier = v
	} else {
		slog.Warn("Token verification is disabled - actors are read from request headers")
	}
	authMw := middleware.NewAuthMiddleware(verifier, cfg.Auth.Enabled)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(ctx, &cfg.RateLimit)

	// Setup router
	mux := http.NewServeMux()
	handlers.NewDecisionHandler(app.Decisions).Register(mux, authMw.Authenticate)
	handlers.NewAutomaticHandler(app.Automatic).Register(mux, authMw.Authenticate)

	// Health check endpoint
	mux.HandleFunc("GET /health", handlers.NewHealthHandler(cfg.App.Version, app.HealthChecks()).Health)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	}

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.Chain(mux,
		middleware.LoggingMiddleware,
		middleware.SecurityHeaders,
		corsMw.Handler,
		rateLimiter.Limit,
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Outbox dispatcher, woken after every commit
	g.Go(func() error {
		app.Dispatcher.Run(gctx)
		return nil
	})

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(app.Dispatcher, app.Automatic, &cfg.Scheduler)
	if err := schedulerService.Start(gctx); err != nil {
		stop()
		_ = g.Wait()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer schedulerService.Stop()

	g.Go(func() error {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal to gracefully shut down the server
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Server stopped")
	return nil
}
