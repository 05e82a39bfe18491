package postgres

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lorrc/service-desk-realtime/migrations"
)

// RunMigrations applies the embedded migrations to the database at
// databaseURL. An already up-to-date schema is not an error.
func RunMigrations(databaseURL string, logger *slog.Logger) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	mig, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("failed to close migrate instance", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := mig.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database schema up to date")
			return nil
		}
		return fmt.Errorf("could not run migrations: %w", err)
	}

	version, dirty, err := mig.Version()
	if err != nil {
		return fmt.Errorf("could not read migration version: %w", err)
	}
	logger.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}
