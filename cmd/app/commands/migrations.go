package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/allisson/tierguard/internal/database"
)

// RunMigrations executes database migrations based on the configured driver.
// PostgreSQL and MySQL use the SQL files under migrations/; SQLite applies its
// embedded migrations on open. Returns nil if no migrations to apply.
func RunMigrations(logger *slog.Logger, dbDriver, dbConnectionString string) error {
	logger.Info("running database migrations",
		slog.String("driver", dbDriver),
	)

	if dbDriver == database.DriverSQLite {
		db, err := database.OpenSQLite(dbConnectionString)
		if err != nil {
			return fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
		if err := db.Close(); err != nil {
			return fmt.Errorf("failed to close sqlite database: %w", err)
		}
		logger.Info("migrations completed successfully")
		return nil
	}

	migrationsPath := "file://migrations/postgresql"
	databaseURL := dbConnectionString
	if dbDriver == database.DriverMySQL {
		migrationsPath = "file://migrations/mysql"
		if !strings.HasPrefix(databaseURL, "mysql://") {
			databaseURL = "mysql://" + databaseURL
		}
	}

	m, err := migrate.New(migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}
