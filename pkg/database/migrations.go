package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/migrations"
	"github.com/ekaya-inc/ekaya-continuum/pkg/retry"
)

// EnsureSchema applies the embedded migrations to the database at cfg.Path.
// Every statement is create-if-not-exists, so it is safe to call on every
// open, including against files created by other tooling.
//
// The migration driver closes the handle it is given, so this opens its own.
func EnsureSchema(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	if err := ensureParentDir(cfg.Path); err != nil {
		return err
	}

	return retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		sqlDB, err := sql.Open(DriverName, DSN(cfg.Path, cfg.BusyTimeout))
		if err != nil {
			return fmt.Errorf("failed to open database for migrations: %w", err)
		}
		// RunMigrations closes sqlDB through the migrate driver
		return RunMigrations(sqlDB, logger)
	})
}

// RunMigrations executes pending migrations embedded in the migrations package.
// It is idempotent and safe to call multiple times - only pending migrations will be executed.
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("No migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	logger.Info("Applied migrations successfully", zap.Uint("version", newVersion))
	return nil
}
