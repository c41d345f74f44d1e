package app

import (
	"context"
	"fmt"

	"github.com/jaqubm/budgetme-backend/auth"
	"github.com/jaqubm/budgetme-backend/config"
	"github.com/jaqubm/budgetme-backend/credential"
	"github.com/jaqubm/budgetme-backend/handlers"
	"github.com/jaqubm/budgetme-backend/identity"
	"github.com/jaqubm/budgetme-backend/middleware"
	"github.com/jaqubm/budgetme-backend/repositories/postgres"
	"github.com/jaqubm/budgetme-backend/services"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Services
	AuthService *services.AuthService

	// HTTP
	AuthHandler    *handlers.AuthHandler
	HealthHandler  *handlers.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies connects to the database and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	deps, err := newDependencies(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("identity_strategy", deps.IdentityStrategy()),
		zap.String("credential_algorithm", cfg.Auth.CredentialAlgorithm))
	return deps, nil
}

// newDependencies wires everything on top of an open database
func newDependencies(cfg *config.Config, db *postgres.DB, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		DB:     db,
		Logger: logger,
	}

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}
	deps.HealthHandler = handlers.NewHealthHandler(db, logger)

	return deps, nil
}

// initAuth derives the credential key once and builds the auth stack around it
func (d *Dependencies) initAuth(cfg *config.Config) error {
	key, err := credential.DeriveKey([]byte(cfg.Auth.MasterSecret), []byte(cfg.Auth.Salt), cfg.Auth.KDFIterations)
	if err != nil {
		return fmt.Errorf("derive credential key: %w", err)
	}

	credCfg := credential.Config{
		Key:       key,
		Algorithm: cfg.Auth.CredentialAlgorithm,
		Lifetime:  cfg.Auth.CredentialLifetime(),
	}
	issuer, err := credential.NewIssuer(credCfg)
	if err != nil {
		return fmt.Errorf("create credential issuer: %w", err)
	}
	verifier, err := credential.NewVerifier(credCfg)
	if err != nil {
		return fmt.Errorf("create credential verifier: %w", err)
	}

	idVerifier, err := newIdentityVerifier(cfg.Auth)
	if err != nil {
		return err
	}
	if cfg.Auth.GoogleClientID == "" {
		d.Logger.Warn("GOOGLE_CLIENT_ID not set, every login will be rejected")
	}

	d.AuthService = services.NewAuthService(idVerifier, issuer, verifier, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.AuthService, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, auth.NewStateManager(cfg.Auth.RedirectURI), d.Logger)

	d.Logger.Info("auth initialized", zap.String("identity_strategy", cfg.Auth.IdentityStrategy))
	return nil
}

// newIdentityVerifier selects the single identity strategy active in this process
func newIdentityVerifier(cfg config.AuthConfig) (identity.Verifier, error) {
	switch cfg.IdentityStrategy {
	case config.StrategyAuthorizationCode:
		return identity.NewCodeExchangeVerifier(identity.CodeExchangeConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Timeout:      cfg.IdentityTimeout,
		}), nil
	case config.StrategyTokenInfo:
		return identity.NewTokenInfoVerifier(identity.TokenInfoConfig{
			ClientID: cfg.GoogleClientID,
			Timeout:  cfg.IdentityTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown identity strategy: %q", cfg.IdentityStrategy)
	}
}

// IdentityStrategy returns the configured identity strategy name
func (d *Dependencies) IdentityStrategy() string {
	return d.Config.Auth.IdentityStrategy
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
