package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/custodia-labs/campus/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/logger"
)

// Migration directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Migrate applies the embedded index migrations to the database at dsn.
// steps > 0 limits how many migrations run; 0 means all of them.
// A database already at the requested version is not an error.
func Migrate(dsn, direction string, steps int) error {
	if dsn == "" {
		return fmt.Errorf("%w: postgres dsn is required", domain.ErrInvalidInput)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("opening migrator: %w", err)
	}
	defer m.Close() //nolint:errcheck

	switch direction {
	case DirectionUp:
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case DirectionDown:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("%w: unknown migration direction %q", domain.ErrInvalidInput, direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("migrate %s: no change", direction)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrating %s: %w", direction, err)
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		logger.Info("migrate: schema at version %d (dirty=%t)", version, dirty)
	}
	return nil
}
