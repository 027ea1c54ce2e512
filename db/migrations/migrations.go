// Package migrations embeds the schema of every supported SQL dialect.
package migrations

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:embed mysql/*.sql postgres/*.sql
var files embed.FS

// Up applies every pending migration of driverName ("mysql" or "postgres")
// over conn.
func Up(conn *sql.DB, driverName string) error {
	m, err := newMigrate(conn, driverName)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "failed applying migrations")
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return errors.Wrap(err, "failed reading schema version")
	}
	log.WithFields(log.Fields{
		"driver":  driverName,
		"version": version,
		"dirty":   dirty,
	}).Info("schema up to date")

	return nil
}

func newMigrate(conn *sql.DB, driverName string) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	switch driverName {
	case "mysql":
		driver, err = mysql.WithInstance(conn, &mysql.Config{})
	case "postgres":
		driver, err = postgres.WithInstance(conn, &postgres.Config{})
	default:
		return nil, errors.Errorf("unsupported database driver %q", driverName)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed creating migration driver")
	}

	source, err := iofs.New(files, driverName)
	if err != nil {
		return nil, errors.Wrap(err, "failed reading migrations")
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating migrator")
	}

	return m, nil
}
