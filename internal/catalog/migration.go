package catalog

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openobserve/corelake/internal/errs"
)

//go:embed migrations/sqlite3/*.sql
var migrationFiles embed.FS

// migrate applies every pending migration under migrations/sqlite3,
// grounded on internal/repository/migration.go's checkDBVersion/MigrateDB
// pattern but simplified to sqlite3-only (the teacher also supports
// mysql; this catalog is single-node embedded only, per spec.md §4.3's
// "local embedded transactional store").
func migrate(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errs.Wrap(errs.Internal, err, "catalog: sqlite3 migrate driver")
	}

	source, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return errs.Wrap(errs.Internal, err, "catalog: load embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "catalog: init migrator")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errs.Wrap(errs.Internal, err, "catalog: apply migrations")
	}
	return nil
}
