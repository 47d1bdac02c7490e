package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"vedtak/internal/models"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	App          AppConfig
	Log          LogConfig
	Scheduler    SchedulerConfig
	Outbox       OutboxConfig
	Integrations IntegrationsConfig
	Decision     DecisionConfig
	Vault        VaultConfig
	Tracing      TracingConfig
	Metrics      MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string // empty runs the migrations compiled into the binary
}

// AuthConfig holds token verification configuration
type AuthConfig struct {
	Enabled       bool
	PublicKeyPEM  string // ES256 public key of the token issuer
	Issuer        string
	Audience      string
	OrgUnitClaim  string
	IdentClaim    string
	ServiceTokens bool // accept tokens without an org unit for system callers
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env     string
	Name    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	OutboxDrainCron       string // e.g., "@every 10s"
	ResumePausedRunsCron  string // e.g., "0 2 * * *" (nightly batch window)
	OutboxGaugeCron       string
	EnableOutboxDrain     bool
	EnableResumePaused    bool
	ResumeParallelism     int
	ResumeBatchSize       int
	ResumeAttemptDeadline time.Duration
}

// OutboxConfig holds outbox dispatcher configuration
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Lease        time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// ServiceEndpoint is one external collaborator
type ServiceEndpoint struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// IntegrationsConfig holds collaborator endpoints
type IntegrationsConfig struct {
	Case         ServiceEndpoint
	Calculation  ServiceEndpoint
	Events       ServiceEndpoint
	Coordination ServiceEndpoint
	Token        string // service-to-service bearer token
}

// DecisionConfig holds lifecycle configuration
type DecisionConfig struct {
	BackpaymentCutover string // YYYY-MM
	SystemMaker        models.Actor
	SystemAttester     models.Actor
	RulesFile          string // empty uses the built-in table
}

// VaultConfig holds Vault-related configuration
type VaultConfig struct {
	Address    string
	Token      string
	KVMount    string
	SecretPath string
	Enabled    bool
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled       bool
	Endpoint      string
	Insecure      bool
	SampleRate    float64
	ServiceName   string
	Environment   string
	ExportTimeout time.Duration
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// godotenv doesn't override already-set variables, so order matters
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			TimeoutRead:  getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDurationEnv("SERVER_TIMEOUT_WRITE", 30*time.Second),
			TimeoutIdle:  getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "vedtak"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "vedtak_db"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", ""),
		},
		Auth: AuthConfig{
			Enabled:       getBoolEnv("AUTH_ENABLED", true),
			PublicKeyPEM:  getEnv("AUTH_PUBLIC_KEY", ""),
			Issuer:        getEnv("AUTH_ISSUER", ""),
			Audience:      getEnv("AUTH_AUDIENCE", "vedtak"),
			IdentClaim:    getEnv("AUTH_IDENT_CLAIM", "NAVident"),
			OrgUnitClaim:  getEnv("AUTH_ORG_UNIT_CLAIM", "enhet"),
			ServiceTokens: getBoolEnv("AUTH_ALLOW_SERVICE_TOKENS", false),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			ExposedHeaders:   getSliceEnv("CORS_EXPOSED_HEADERS", []string{"Link"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getIntEnv("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 300),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
		},
		App: AppConfig{
			Env:     getEnv("APP_ENV", "development"),
			Name:    getEnv("APP_NAME", "vedtak"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Scheduler: SchedulerConfig{
			OutboxDrainCron:       getEnv("SCHEDULER_OUTBOX_DRAIN_CRON", "@every 30s"),
			ResumePausedRunsCron:  getEnv("SCHEDULER_RESUME_PAUSED_CRON", "0 2 * * *"), // Daily 2 AM batch window
			OutboxGaugeCron:       getEnv("SCHEDULER_OUTBOX_GAUGE_CRON", "@every 1m"),
			EnableOutboxDrain:     getBoolEnv("SCHEDULER_ENABLE_OUTBOX_DRAIN", true),
			EnableResumePaused:    getBoolEnv("SCHEDULER_ENABLE_RESUME_PAUSED", true),
			ResumeParallelism:     getIntEnv("SCHEDULER_RESUME_PARALLELISM", 4),
			ResumeBatchSize:       getIntEnv("SCHEDULER_RESUME_BATCH_SIZE", 500),
			ResumeAttemptDeadline: getDurationEnv("SCHEDULER_RESUME_DEADLINE", 2*time.Hour),
		},
		Outbox: OutboxConfig{
			PollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 50),
			MaxAttempts:  getIntEnv("OUTBOX_MAX_ATTEMPTS", 20),
			Lease:        getDurationEnv("OUTBOX_LEASE", 1*time.Minute),
			BaseBackoff:  getDurationEnv("OUTBOX_BASE_BACKOFF", 5*time.Second),
			MaxBackoff:   getDurationEnv("OUTBOX_MAX_BACKOFF", 5*time.Minute),
		},
		Integrations: IntegrationsConfig{
			Case:         loadEndpoint("CASE_SERVICE", "http://localhost:8081"),
			Calculation:  loadEndpoint("CALCULATION_SERVICE", "http://localhost:8082"),
			Events:       loadEndpoint("EVENT_SERVICE", "http://localhost:8083"),
			Coordination: loadEndpoint("COORDINATION_SERVICE", "http://localhost:8084"),
			Token:        getEnv("INTEGRATION_TOKEN", ""),
		},
		Decision: DecisionConfig{
			BackpaymentCutover: getEnv("BACKPAYMENT_CUTOVER", "2024-01"),
			SystemMaker: models.Actor{
				Ident:   getEnv("SYSTEM_MAKER_IDENT", "VEDTAK_AUTOMATIC"),
				OrgUnit: getEnv("SYSTEM_ORG_UNIT", "4817"),
			},
			SystemAttester: models.Actor{
				Ident:   getEnv("SYSTEM_ATTESTER_IDENT", "VEDTAK_AUTOMATIC_ATTESTANT"),
				OrgUnit: getEnv("SYSTEM_ORG_UNIT", "4817"),
			},
			RulesFile: getEnv("DECISION_RULES_FILE", ""),
		},
		Vault: VaultConfig{
			Address:    getEnv("VAULT_ADDR", "http://localhost:8200"),
			Token:      getEnv("VAULT_TOKEN", ""),
			KVMount:    getEnv("VAULT_KV_MOUNT", "secret"),
			SecretPath: getEnv("VAULT_SECRET_PATH", "vedtak"),
			Enabled:    getBoolEnv("VAULT_ENABLED", false),
		},
		Tracing: TracingConfig{
			Enabled:       getBoolEnv("TRACING_ENABLED", false),
			Endpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:      getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRate:    getFloatEnv("TRACING_SAMPLE_RATE", 1.0),
			ServiceName:   getEnv("OTEL_SERVICE_NAME", "vedtak"),
			Environment:   getEnv("APP_ENV", "development"),
			ExportTimeout: getDurationEnv("TRACING_EXPORT_TIMEOUT", 10*time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEndpoint(prefix string, defaultURL string) ServiceEndpoint {
	return ServiceEndpoint{
		BaseURL: strings.TrimRight(getEnv(prefix+"_URL", defaultURL), "/"),
		Timeout: getDurationEnv(prefix+"_TIMEOUT", 10*time.Second),
		RPS:     getFloatEnv(prefix+"_RPS", 20),
		Burst:   getIntEnv(prefix+"_BURST", 10),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.PublicKeyPEM == "" && !c.Vault.Enabled {
		return fmt.Errorf("AUTH_PUBLIC_KEY is required when auth is enabled and Vault is disabled")
	}
	if c.Database.Password == "" && c.App.Env == "production" && !c.Vault.Enabled {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	if _, err := models.ParseYearMonth(c.Decision.BackpaymentCutover); err != nil {
		return fmt.Errorf("BACKPAYMENT_CUTOVER: %w", err)
	}
	if c.Decision.SystemMaker.Ident == c.Decision.SystemAttester.Ident {
		return fmt.Errorf("SYSTEM_MAKER_IDENT and SYSTEM_ATTESTER_IDENT must differ")
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be at least 1")
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be at least 1")
	}
	return nil
}

// CutoverMonth returns the parsed back-payment cutover month
func (c *Config) CutoverMonth() models.YearMonth {
	ym, err := models.ParseYearMonth(c.Decision.BackpaymentCutover)
	if err != nil {
		return models.NewYearMonth(2024, time.January)
	}
	return ym
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Split by comma and trim whitespace
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
