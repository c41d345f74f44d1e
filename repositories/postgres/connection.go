package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jaqubm/budgetme-backend/config"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	driverName         = "postgres"
	healthCheckTimeout = 2 * time.Second
	pingTimeout        = 5 * time.Second
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adapts an existing pool
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the budgets table and its indexes
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS budgets (
			id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_budgets_user_id ON budgets(user_id);
		CREATE INDEX IF NOT EXISTS idx_budgets_date ON budgets(date);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// EnsureDatabase connects to the maintenance database, retrying while the
// server starts, and creates the configured database when it is missing.
func EnsureDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) error {
	name := cfg.DatabaseName()
	if name == "" {
		return errors.New("database name is not configured")
	}

	db, err := sql.Open(driverName, cfg.MaintenanceDSN())
	if err != nil {
		return fmt.Errorf("failed to open maintenance database: %w", err)
	}
	defer db.Close()

	if err := waitForConnection(ctx, db, cfg.ConnectRetries, cfg.ConnectRetryWait, logger); err != nil {
		return err
	}
	return createDatabaseIfMissing(ctx, db, name, logger)
}

// waitForConnection pings db up to attempts times, sleeping wait between tries
func waitForConnection(ctx context.Context, db *sql.DB, attempts int, wait time.Duration, logger *zap.Logger) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		logger.Warn("database connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(lastErr))

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}

func createDatabaseIfMissing(ctx context.Context, db *sql.DB, name string, logger *zap.Logger) error {
	var exists int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", name).Scan(&exists)
	switch {
	case err == nil:
		logger.Info("database already exists", zap.String("database", name))
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to look up database: %w", err)
	}

	// CREATE DATABASE does not accept bind parameters
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to create database %q: %w", name, err)
	}
	logger.Info("database created", zap.String("database", name))
	return nil
}
