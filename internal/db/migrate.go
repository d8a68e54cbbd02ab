package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/banshee-data/reading.mode/internal/monitoring"
)

// SchemaVersion is the migration NewDB brings every database to.
const SchemaVersion = 3

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema is returned when a previous migration failed part way.
// The database must be repaired by hand before it is used again.
var ErrDirtySchema = errors.New("session store schema is dirty")

// MigrateUp applies every pending migration.
func (db *DB) MigrateUp() error {
	return db.migrate("up", func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown reverts the latest applied migration.
func (db *DB) MigrateDown() error {
	return db.migrate("down", func(m *migrate.Migrate) error { return m.Steps(-1) })
}

// MigrateTo moves the schema up or down to version.
func (db *DB) MigrateTo(version uint) error {
	return db.migrate(fmt.Sprintf("to %d", version), func(m *migrate.Migrate) error { return m.Migrate(version) })
}

// MigrateVersion reports the applied schema version. An empty database
// is version 0.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	err = db.withMigrator(func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		return verr
	})
	return version, dirty, err
}

func (db *DB) migrate(direction string, step func(*migrate.Migrate) error) error {
	return db.withMigrator(func(m *migrate.Migrate) error {
		if _, dirty, err := m.Version(); err == nil && dirty {
			return ErrDirtySchema
		}
		if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate %s: %w", direction, err)
		}
		return nil
	})
}

// withMigrator runs fn against the embedded migrations. The migrator is
// not closed; closing it would close the shared *sql.DB.
func (db *DB) withMigrator(fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrateLogger{}
	return fn(m)
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }
