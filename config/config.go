package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jaqubm/budgetme-backend/credential"
	"github.com/joho/godotenv"
)

// Identity verification strategies accepted in IDENTITY_STRATEGY.
const (
	StrategyAuthorizationCode = "authorization_code"
	StrategyTokenInfo         = "tokeninfo"
)

// Insecure development defaults. Validate rejects them in production.
const (
	DefaultMasterSecret = "your-secret-key-change-in-production"
	DefaultSalt         = "budgetme_default_salt_change_in_production"

	// MinProductionKDFIterations is the lowest PBKDF2 iteration count accepted in production.
	MinProductionKDFIterations = 100000
)

// DefaultRequestTimeout is the per-request deadline applied by the router.
const DefaultRequestTimeout = 30 * time.Second

// Production and development CORS origins
var (
	ProdCORSOrigins = []string{"https://budgetme.jaqubm.dev"}
	DevCORSOrigins  = []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://localhost:8000",
	}
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration // Per-request deadline; must exceed AuthConfig.IdentityTimeout
	CORSOrigins     []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnectRetries   int
	ConnectRetryWait time.Duration
	AutoMigrate      bool // Create the budgets schema on start-up
}

// AuthConfig holds Google OAuth and credential settings
type AuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURI        string
	IdentityStrategy   string
	IdentityTimeout    time.Duration

	MasterSecret           string
	Salt                   string
	KDFIterations          int
	CredentialLifetimeMins int
	CredentialAlgorithm    string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", DefaultRequestTimeout),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:            getEnv("OAUTH_REDIRECT_URI", "http://localhost:8000/auth/callback"),
			IdentityStrategy:       getEnv("IDENTITY_STRATEGY", StrategyAuthorizationCode),
			IdentityTimeout:        getEnvAsDuration("IDENTITY_HTTP_TIMEOUT", 10*time.Second),
			MasterSecret:           getEnv("JWT_SECRET_KEY", DefaultMasterSecret),
			Salt:                   getEnv("ENCRYPTION_SALT", DefaultSalt),
			KDFIterations:          getEnvAsInt("KDF_ITERATIONS", credential.DefaultIterations),
			CredentialLifetimeMins: getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 60*24*7),
			CredentialAlgorithm:    getCredentialAlgorithm(),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	defaultOrigins := DevCORSOrigins
	if cfg.IsProduction() {
		defaultOrigins = ProdCORSOrigins
	}
	cfg.Server.CORSOrigins = getEnvAsList("SERVER_CORS_ORIGINS", defaultOrigins)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if err := c.Auth.validate(c.IsProduction()); err != nil {
		return err
	}
	if c.Server.RequestTimeout <= c.Auth.IdentityTimeout {
		return fmt.Errorf("server request timeout (%s) must exceed identity http timeout (%s)",
			c.Server.RequestTimeout, c.Auth.IdentityTimeout)
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

func (a *AuthConfig) validate(production bool) error {
	switch a.IdentityStrategy {
	case StrategyAuthorizationCode, StrategyTokenInfo:
	default:
		return fmt.Errorf("unknown identity strategy: %q", a.IdentityStrategy)
	}
	if !credential.IsSupportedAlgorithm(a.CredentialAlgorithm) {
		return fmt.Errorf("unsupported credential algorithm: %q", a.CredentialAlgorithm)
	}
	if a.MasterSecret == "" {
		return fmt.Errorf("master secret is required")
	}
	if a.KDFIterations < 1 {
		return fmt.Errorf("kdf iterations must be positive")
	}
	if a.CredentialLifetimeMins < 1 {
		return fmt.Errorf("credential lifetime must be positive")
	}
	if a.IdentityTimeout <= 0 {
		return fmt.Errorf("identity http timeout must be positive")
	}

	if !production {
		return nil
	}

	// Insecure defaults are only acceptable outside production
	if a.MasterSecret == DefaultMasterSecret {
		return fmt.Errorf("JWT_SECRET_KEY must be set in production")
	}
	if a.Salt == DefaultSalt {
		return fmt.Errorf("ENCRYPTION_SALT must be set in production")
	}
	if a.KDFIterations < MinProductionKDFIterations {
		return fmt.Errorf("kdf iterations must be at least %d in production", MinProductionKDFIterations)
	}
	if a.GoogleClientID == "" {
		return fmt.Errorf("google client ID is required in production")
	}
	if a.IdentityStrategy == StrategyAuthorizationCode && a.GoogleClientSecret == "" {
		return fmt.Errorf("google client secret is required in production")
	}
	return nil
}

// CredentialLifetime returns the configured credential lifetime as a duration
func (a *AuthConfig) CredentialLifetime() time.Duration {
	return time.Duration(a.CredentialLifetimeMins) * time.Minute
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return c.dsnFor(c.Database)
}

// MaintenanceDSN returns a DSN for the "postgres" maintenance database on the same server.
// Used to create the application database when it does not exist yet.
func (c *DatabaseConfig) MaintenanceDSN() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err != nil {
			return c.ConnectionString
		}
		u.Path = "/postgres"
		return u.String()
	}
	return c.dsnFor("postgres")
}

// DatabaseName returns the configured database name, parsing DATABASE_URL when set.
func (c *DatabaseConfig) DatabaseName() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err != nil {
			return ""
		}
		return strings.TrimPrefix(u.Path, "/")
	}
	return c.Database
}

func (c *DatabaseConfig) dsnFor(database string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnectRetries:   getEnvAsInt("DB_CONNECT_RETRIES", 10),
		ConnectRetryWait: getEnvAsDuration("DB_CONNECT_RETRY_DELAY", 3*time.Second),
		AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", false),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "budgetme")
	cfg.Password = getEnv("DB_PASSWORD", "budgetme")
	cfg.Database = getEnv("DB_NAME", "budgetme")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getCredentialAlgorithm reads CREDENTIAL_ALGORITHM, falling back to JWT_ALGORITHM.
// JWT_ALGORITHM is shared with older deployments where it names a JWS algorithm
// such as HS256, so it is only honoured when it names a supported AEAD.
func getCredentialAlgorithm() string {
	if value := os.Getenv("CREDENTIAL_ALGORITHM"); value != "" {
		return value
	}
	if legacy := os.Getenv("JWT_ALGORITHM"); credential.IsSupportedAlgorithm(legacy) {
		return legacy
	}
	return credential.AlgorithmA256GCM
}

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blank entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
