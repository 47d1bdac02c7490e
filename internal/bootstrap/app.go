// Package bootstrap wires configuration, storage, collaborators and services
// into one App shared by the API server and the batch command.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"vedtak/internal/config"
	"vedtak/internal/database"
	"vedtak/internal/handlers"
	"vedtak/internal/integration"
	"vedtak/internal/logger"
	"vedtak/internal/metrics"
	"vedtak/internal/observability"
	"vedtak/internal/outbox"
	"vedtak/internal/repository"
	"vedtak/internal/rules"
	"vedtak/internal/service"
	"vedtak/internal/vault"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds every long-lived component
type App struct {
	Config     *config.Config
	DB         *database.Database
	Store      *repository.PostgresStore
	Registry   *prometheus.Registry
	Observer   metrics.Observer
	Tracing    *observability.TracerProvider
	Vault      *vault.Client
	Decisions  *service.DecisionService
	Automatic  *service.AutomaticService
	Dispatcher *outbox.Dispatcher
}

// LoadConfig reads the environment, overlays Vault secrets when enabled and validates the result
func LoadConfig(ctx context.Context) (*config.Config, *vault.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var vaultClient *vault.Client
	if cfg.Vault.Enabled {
		vaultClient, err = vault.NewClient(&cfg.Vault)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Vault client: %w", err)
		}
		if err := vault.ApplySecrets(ctx, cfg, vaultClient); err != nil {
			return nil, nil, fmt.Errorf("failed to read secrets from Vault: %w", err)
		}
		slog.Info("Secrets loaded from Vault", "vault_addr", cfg.Vault.Address)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, vaultClient, nil
}

// SetupLogger configures the default slog logger from cfg
func SetupLogger(cfg *config.Config) {
	logger.Setup(logger.Config{
		Level:   cfg.Log.Level,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
}

// New connects to the database, runs migrations and builds the services
func New(ctx context.Context, cfg *config.Config, vaultClient *vault.Client) (*App, error) {
	app := &App{Config: cfg, Vault: vaultClient}

	tracing, err := observability.NewTracerProvider(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.Tracing = tracing

	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		_ = tracing.Shutdown(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	slog.Info("Database connection established")

	if err := db.RunMigrations(ctx, database.MigrationSource(&cfg.Database)); err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")

	app.Registry = prometheus.NewRegistry()
	app.Observer = metrics.Nop{}
	if cfg.Metrics.Enabled {
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observer, err := metrics.NewPrometheusObserver(cfg.App.Name, app.Registry)
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		app.Observer = observer
	}

	table, err := loadRules(cfg.Decision.RulesFile)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	slog.Info("Decision rules loaded", "rules_version", table.Version())

	token := cfg.Integrations.Token
	cases := integration.NewCaseClient(cfg.Integrations.Case, token, httpClient(cfg.Integrations.Case))
	calculation := integration.NewCalculationClient(cfg.Integrations.Calculation, token, httpClient(cfg.Integrations.Calculation))
	events := integration.NewEventClient(cfg.Integrations.Events, token, httpClient(cfg.Integrations.Events))
	coordination := integration.NewCoordinationClient(cfg.Integrations.Coordination, token, httpClient(cfg.Integrations.Coordination))

	tracer := tracing.Tracer()
	app.Store = repository.NewPostgresStore(db.DB)
	app.Dispatcher = outbox.NewDispatcher(app.Store, cases, events, outbox.Config{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		Lease:        cfg.Outbox.Lease,
		BaseBackoff:  cfg.Outbox.BaseBackoff,
		MaxBackoff:   cfg.Outbox.MaxBackoff,
	}, outbox.WithObserver(app.Observer), outbox.WithTracer(tracer))

	app.Decisions = service.NewDecisionService(
		app.Store,
		cases,
		calculation,
		coordination,
		table,
		cfg.CutoverMonth(),
		service.WithCommitHook(app.Dispatcher.Kick),
		service.WithObserver(app.Observer),
		service.WithTracer(tracer),
	)
	app.Automatic = service.NewAutomaticService(
		app.Decisions,
		cases,
		app.Store,
		cfg.Decision.SystemMaker,
		cfg.Decision.SystemAttester,
		app.Observer,
	)

	return app, nil
}

// HealthChecks lists the dependencies reported by the health endpoint
func (a *App) HealthChecks() map[string]handlers.HealthChecker {
	checks := map[string]handlers.HealthChecker{"database": a.DB}
	if a.Vault != nil {
		checks["vault"] = a.Vault
	}
	return checks
}

// Close flushes spans and closes the database
func (a *App) Close(ctx context.Context) {
	if a.Tracing != nil {
		if err := a.Tracing.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down tracing", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}
}

func loadRules(path string) (*rules.Table, error) {
	if path == "" {
		return rules.Default()
	}
	table, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load decision rules from %s: %w", path, err)
	}
	return table, nil
}

func httpClient(endpoint config.ServiceEndpoint) *http.Client {
	return &http.Client{Timeout: endpoint.Timeout}
}
