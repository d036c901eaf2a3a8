package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate runs every pending up migration, mirroring the embed-and-run
// convention of the teacher's pkg/database/migrations.go — adapted from a
// single hand-written index-creation helper to a full golang-migrate
// runner, since this package owns its schema from scratch rather than
// generating it from ent.
func Migrate(cfg Config) error {
	return MigrateURL(cfg.URL())
}

// MigrateURL runs every pending up migration against an arbitrary
// golang-migrate-flavored pgx5 URL. Exported so test infrastructure
// (test/util) can point it at a schema-scoped search_path URL for an
// isolated per-test schema, without duplicating the migrator wiring.
func MigrateURL(url string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("storage: open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return fmt.Errorf("storage: new migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: run migrations: %w", err)
	}
	return nil
}
