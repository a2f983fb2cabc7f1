// Package migrations embeds the schema of every supported dialect and applies it with
// golang-migrate.
package migrations

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbmanager"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed postgresql/*.sql mysql/*.sql sqlite3/*.sql
var schemaFS embed.FS

// Migrator applies embedded migrations to the database behind a pool.
type Migrator struct {
	m *migrate.Migrate
}

// New prepares a migrator for the pool's dialect. Closing the migrator closes the
// pool's database, so callers that keep serving must not call Close.
func New(pool dbmanager.Pool) (*Migrator, error) {
	d := pool.Dialect()
	src, err := iofs.New(schemaFS, d.Name())
	if err != nil {
		return nil, errors.Wrapf(err, "no migrations for dialect %s", d.Name())
	}
	drv, err := d.MigrationDriver(pool.DB())
	if err != nil {
		return nil, errors.Wrap(err, "unable to create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, d.Name(), drv)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize migrations")
	}
	m.Log = migrateLogger{}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. Being up to date is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "up failed")
	}
	return nil
}

// Down rolls back n migrations.
func (mg *Migrator) Down(n int) error {
	if n < 1 {
		return fmt.Errorf("down: invalid steps %d", n)
	}
	if err := mg.m.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "down failed")
	}
	return nil
}

// Version returns the current schema version; zero when no migration was applied yet.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, errors.Wrap(err, "version failed")
}

// Force sets the version without running migrations, clearing a dirty state.
func (mg *Migrator) Force(version int) error {
	return errors.Wrap(mg.m.Force(version), "force failed")
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Info().Msgf("migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }
