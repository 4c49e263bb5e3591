package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies the embedded schema migrations for the gateway's driver.
// Running it on an up-to-date database is a no-op.
func (g *SQLGateway) Migrate() error {
	source, err := iofs.New(migrations, "migrations/"+g.driver)
	if err != nil {
		return fmt.Errorf("loading %s migrations: %w", g.driver, err)
	}

	var driver database.Driver
	switch g.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(g.db.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(g.db.DB, &sqlite.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", g.driver)
	}
	if err != nil {
		return fmt.Errorf("preparing migration driver: %w", err)
	}

	// The migrate instance is not closed: closing it would close the
	// gateway's database handle.
	m, err := migrate.NewWithInstance("iofs", source, g.driver, driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		g.logger.Info("database schema up to date",
			zap.String("driver", g.driver),
			zap.Uint("version", version),
			zap.Bool("dirty", dirty))
	}
	return nil
}
